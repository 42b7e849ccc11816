/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package timetoken extracts logged-hours annotations from free-text
// comments. The recognized pattern is the literal "Time", one or more
// colons, optional whitespace and an unsigned decimal, anywhere in the
// text and regardless of surrounding markup.
package timetoken

import (
    "html"
    "regexp"
    "strconv"
)

var (
    tokenRe = regexp.MustCompile(`(?i)Time:+\s*(\d+(?:\.\d+)?)`)
    tagRe   = regexp.MustCompile(`<[^>]*>`)
)

// Extract returns the sum of every time token found in text, 0 when there is
// none. It never fails; malformed numbers are skipped.
func Extract(text string) float64 {
    if text == "" { return 0 }
    total := 0.0
    for _, m := range tokenRe.FindAllStringSubmatch(text, -1) {
        v, err := strconv.ParseFloat(m[1], 64)
        if err != nil { continue }
        total += v
    }
    return total
}

// StripTags removes markup tags and unescapes entities, for the combined
// plain-text comment in report rows. It is deliberately a narrow rule, not
// an HTML parser.
func StripTags(s string) string {
    return html.UnescapeString(tagRe.ReplaceAllString(s, ""))
}
