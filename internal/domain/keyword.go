package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Keyword is a named WiseNews query whose results land in their own collection.
type Keyword struct {
	Name       string `mapstructure:"name" yaml:"name" json:"name"`
	Collection string `mapstructure:"collection" yaml:"collection" json:"collection"`
	Terms      string `mapstructure:"terms" yaml:"terms" json:"terms"`
}

// DefaultKeywords are used when the config file does not declare any.
func DefaultKeywords() []Keyword {
	return []Keyword{
		{
			Name:       "helium",
			Collection: "helium_news",
			Terms:      "(雪種 or 石油氣 or 笠頭 or 包頭 or 膠袋 or 氣袋 or 氮氣 or 毒氣 or 氫氣 or 吸氣 or 氣體 or 氣罐 or 氦氣 or 氣瓶 or 氣樽 or 氣罐) and (自殺 or 亡 or 命危)",
		},
		{
			Name:       "csrp",
			Collection: "csrp_news",
			Terms:      "防止自殺研究中心 or 葉兆輝",
		},
		{
			Name:       "suicide",
			Collection: "suicide_news",
			Terms:      "自殺",
		},
	}
}

// Validate checks that the keyword can be searched and stored.
func (k Keyword) Validate() error {
	if strings.TrimSpace(k.Name) == "" {
		return errors.New("keyword name is required")
	}
	if strings.TrimSpace(k.Terms) == "" {
		return fmt.Errorf("keyword %q has no search terms", k.Name)
	}
	if strings.TrimSpace(k.Collection) == "" {
		return fmt.Errorf("keyword %q has no collection", k.Name)
	}
	return nil
}

// SelectKeywords returns the keywords matching names, in the order given.
// An empty names list selects every keyword.
func SelectKeywords(all []Keyword, names []string) ([]Keyword, error) {
	if len(names) == 0 {
		out := make([]Keyword, len(all))
		copy(out, all)
		return out, nil
	}

	idx := make(map[string]Keyword, len(all))
	for _, k := range all {
		idx[strings.ToLower(k.Name)] = k
	}

	out := make([]Keyword, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		k, ok := idx[key]
		if !ok {
			return nil, fmt.Errorf("unknown keyword %q", n)
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}
