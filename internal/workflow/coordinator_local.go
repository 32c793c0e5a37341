package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dubflow/internal/fileutil"
	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/stage"
)

// canonicalVideoName is the file every stage expects inside an item folder.
const canonicalVideoName = "download.mp4"

// runLocal copies a local video into <root>/<name>/download.mp4 and runs it
// through the pipeline once. The source resolver is never consulted.
func (c *Coordinator) runLocal(ctx context.Context, batchID, root, token string, params stage.Params) Report {
	logger := logging.WithContext(ctx, c.logger)

	source := localSource(root, token)
	folder := filepath.Join(root, localFolderName(source))
	target := filepath.Join(folder, canonicalVideoName)

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return c.localFailure(ctx, batchID, services.Wrap(services.ErrConfiguration, "", "prepare local video", "create item folder", err))
	}
	if err := fileutil.CopyFile(source, target); err != nil {
		return c.localFailure(ctx, batchID, services.Wrap(services.ErrConfiguration, "", "prepare local video", "copy video", err))
	}
	logger.Info("local video staged",
		logging.String("source", source),
		logging.String("target", target),
	)

	if report, ok := c.ensureBackends(ctx, batchID, params); !ok {
		return report
	}

	item := stage.LocalItem(target)
	c.notifyStarted(ctx, []string{token}, 1)
	runner := NewRunner(c.stages, root, c.logger, c.runnerOpts...)
	outcome := c.runItem(ctx, runner, item, params)
	c.recordItem(ctx, batchID, 1, outcome)

	report := Report{BatchID: batchID}
	report.add(outcome)
	if outcome.Succeeded() {
		report.Summary = "处理成功"
		logger.Info("local video processed", logging.String("video", outcome.Video))
	} else {
		report.Summary = fmt.Sprintf("处理失败: %s", outcome.Message)
		report.Err = outcome.Err
		logging.ErrorWithContext(logger, "local video failed", "local_item_failed",
			logging.String("message", outcome.Message),
			logging.String(logging.FieldErrorHint, "see the stage failure logged above"),
			logging.Error(outcome.Err),
		)
	}
	return report
}

func (c *Coordinator) localFailure(ctx context.Context, batchID string, err error) Report {
	logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "local video preparation failed", "local_prepare_failed",
		logging.String(logging.FieldErrorHint, "check the file path and free disk space"),
		logging.Error(err),
	)
	return fatalReport(batchID, fmt.Sprintf("处理本地视频失败: %v", err), err)
}
