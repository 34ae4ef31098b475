// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sort"
	"strings"

	"github.com/bureau-foundation/livyctl/lib/fault"
)

// Language is the user-facing interpreter language of a session.
type Language string

const (
	LanguagePython Language = "python"
	LanguageScala  Language = "scala"
	LanguageR      Language = "r"
	LanguageSQL    Language = "sql"
)

// Kind is the job server's interpreter flavor for a session.
type Kind string

const (
	KindPySpark Kind = "pyspark"
	KindSpark   Kind = "spark"
	KindSparkR  Kind = "sparkr"
	KindSQL     Kind = "sql"
)

var languageKinds = map[Language]Kind{
	LanguagePython: KindPySpark,
	LanguageScala:  KindSpark,
	LanguageR:      KindSparkR,
	LanguageSQL:    KindSQL,
}

// Languages returns the accepted languages in sorted order.
func Languages() []Language {
	languages := make([]Language, 0, len(languageKinds))
	for language := range languageKinds {
		languages = append(languages, language)
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i] < languages[j] })
	return languages
}

// ParseLanguage matches candidate case-insensitively against the
// accepted languages. Anything else is a usage fault that lists them.
func ParseLanguage(candidate string) (Language, error) {
	language := Language(strings.ToLower(strings.TrimSpace(candidate)))
	if _, ok := languageKinds[language]; ok {
		return language, nil
	}
	accepted := make([]string, 0, len(languageKinds))
	for _, known := range Languages() {
		accepted = append(accepted, string(known))
	}
	return "", fault.Usage("%q is not a valid language; accepted values: %s", candidate, strings.Join(accepted, ", "))
}

// Kind returns the session kind the job server runs for language.
func (l Language) Kind() Kind { return languageKinds[l] }

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPySpark, KindSpark, KindSparkR, KindSQL:
		return true
	}
	return false
}

// Language returns the language whose interpreter k is, or "" for an
// unknown kind.
func (k Kind) Language() Language {
	for language, kind := range languageKinds {
		if kind == k {
			return language
		}
	}
	return ""
}
