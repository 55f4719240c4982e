// SPDX-License-Identifier: MIT

package render

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// ParsePageSpec resolves a user-specified page spec string into an explicit
// ordered page sequence. Syntax is 1-based, comma-separated entries, each a
// single page ("3") or an inclusive range ("3-5"). Out-of-range pages are
// clamped to the document's actual page count. An empty or unparseable spec
// falls back to all pages.
//
//	ParsePageSpec("1,3-5", 6) == []int{1, 3, 4, 5}
//	ParsePageSpec("", 6)      == []int{1, 2, 3, 4, 5, 6}
//	ParsePageSpec("9", 6)     == []int{6}
func ParsePageSpec(spec string, pageCount int) []int {
	if pageCount < 1 {
		return nil
	}

	var pages []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lowStr, highStr, isRange := strings.Cut(part, "-"); isRange {
			low, err1 := strconv.Atoi(strings.TrimSpace(lowStr))
			high, err2 := strconv.Atoi(strings.TrimSpace(highStr))
			if err1 != nil || err2 != nil || low > high {
				continue
			}
			for p := low; p <= high; p++ {
				pages = append(pages, clampPage(p, pageCount))
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		pages = append(pages, clampPage(p, pageCount))
	}

	pages = lo.Uniq(pages)
	if len(pages) == 0 {
		return allPages(pageCount)
	}
	return pages
}

func clampPage(p, pageCount int) int {
	if p < 1 {
		return 1
	}
	if p > pageCount {
		return pageCount
	}
	return p
}

func allPages(pageCount int) []int {
	pages := make([]int, pageCount)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
