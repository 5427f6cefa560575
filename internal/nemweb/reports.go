package nemweb

import (
	"fmt"
	"regexp"
	"time"

	"aemo-price-feed/internal/nem"
)

// Report names embed a yyyymmddhhmm publication stamp in AEST.
const publishedLayout = "200601021504"

var (
	dispatchPattern = regexp.MustCompile(`PUBLIC_DISPATCHIS_(\d{12})_\d+\.zip`)
	// NEMWEB occasionally lists dispatch variants under other prefixes.
	dispatchAltPattern = regexp.MustCompile(`PUBLIC_DISPATCH[A-Z]*_(\d{12})_\d+\.zip`)
	p5minPattern       = regexp.MustCompile(`PUBLIC_P5MIN_(\d{12})_\d{14}\.zip`)
	predispatchPattern = regexp.MustCompile(`PUBLIC_PREDISPATCH_(\d{12})_\d{14}_LEGACY\.zip`)
)

// reportPath returns the Current listing directory for a product stream.
func reportPath(kind nem.ProductKind) (string, error) {
	switch kind {
	case nem.ProductRealtime:
		return "/Reports/Current/DispatchIS_Reports/", nil
	case nem.ProductFiveMinute:
		return "/Reports/Current/P5_Reports/", nil
	case nem.ProductPredispatch:
		return "/Reports/Current/Predispatch_Reports/", nil
	}
	return "", fmt.Errorf("no NEMWEB path for product %q", kind)
}

func reportPatterns(kind nem.ProductKind) []*regexp.Regexp {
	switch kind {
	case nem.ProductRealtime:
		return []*regexp.Regexp{dispatchPattern, dispatchAltPattern}
	case nem.ProductFiveMinute:
		return []*regexp.Regexp{p5minPattern}
	case nem.ProductPredispatch:
		return []*regexp.Regexp{predispatchPattern}
	}
	return nil
}

// PublishedTime extracts the publication stamp embedded in a report file
// name, for any of the known report shapes.
func PublishedTime(name string) (time.Time, bool) {
	for _, pattern := range []*regexp.Regexp{dispatchPattern, dispatchAltPattern, p5minPattern, predispatchPattern} {
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		published, err := time.ParseInLocation(publishedLayout, match[1], nem.AEST)
		if err != nil {
			continue
		}
		return published, true
	}
	return time.Time{}, false
}

// latestReport picks the newest report filename in a listing page by its
// publication stamp. For equal stamps the first listed file wins.
func latestReport(listing string, kind nem.ProductKind) (string, time.Time, error) {
	for _, pattern := range reportPatterns(kind) {
		matches := pattern.FindAllStringSubmatch(listing, -1)
		if len(matches) == 0 {
			continue
		}

		best := matches[0]
		for _, match := range matches[1:] {
			if match[1] > best[1] {
				best = match
			}
		}

		published, err := time.ParseInLocation(publishedLayout, best[1], nem.AEST)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("parse report stamp %q: %w", best[1], err)
		}
		return best[0], published, nil
	}
	return "", time.Time{}, ErrNoReport
}
