package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	label   string   // UI label as entered in config
	aliases []string // Alternate spellings, lowercase
	tag     language.Tag
}

var entries = []entry{
	{"简体中文", []string{"simplified chinese", "zh-cn", "zh-hans"}, language.SimplifiedChinese},
	{"繁体中文", []string{"traditional chinese", "zh-tw", "zh-hant"}, language.TraditionalChinese},
	{"中文", []string{"chinese", "zh"}, language.Chinese},
	{"粤语", []string{"cantonese", "yue"}, language.MustParse("yue")},
	{"English", []string{"english", "英语", "en"}, language.English},
	{"Japanese", []string{"japanese", "日语", "ja"}, language.Japanese},
	{"Korean", []string{"korean", "韩语", "ko"}, language.Korean},
	{"Spanish", []string{"spanish", "西班牙语", "es"}, language.Spanish},
	{"French", []string{"french", "法语", "fr"}, language.French},
}

var byKey map[string]*entry

func init() {
	byKey = make(map[string]*entry, len(entries)*4)
	for i := range entries {
		e := &entries[i]
		byKey[strings.ToLower(e.label)] = e
		for _, alias := range e.aliases {
			byKey[alias] = e
		}
	}
}

// Resolve maps a UI label, alias, or BCP-47 code to a language tag.
func Resolve(label string) (language.Tag, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return language.Und, fmt.Errorf("language: empty label")
	}
	if e, ok := byKey[key]; ok {
		return e.tag, nil
	}
	tag, err := language.Parse(key)
	if err != nil {
		return language.Und, fmt.Errorf("language: unrecognized label %q", label)
	}
	return tag, nil
}

// Code returns the BCP-47 code for label, or an empty string when unknown.
func Code(label string) string {
	tag, err := Resolve(label)
	if err != nil {
		return ""
	}
	return tag.String()
}

// EnglishName returns the English display name used in translation prompts.
// Unknown labels are returned trimmed and unchanged.
func EnglishName(label string) string {
	tag, err := Resolve(label)
	if err != nil {
		return strings.TrimSpace(label)
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// Labels lists the UI labels in presentation order.
func Labels() []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.label)
	}
	return out
}
