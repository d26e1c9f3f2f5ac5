package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/star/tlestate/internal/metrics"
)

// Parse reads a NORAD TLE catalog from r. Entries are normally three lines
// (name, line 1, line 2); a bare line 1/line 2 pair is accepted too.
// Every entry is validated with New; malformed entries are skipped with a
// warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []TLEEntry
	for i := 0; i+1 < len(lines); {
		var name, line1, line2 string
		switch {
		case isLine(lines[i], '1') && isLine(lines[i+1], '2'):
			line1, line2 = lines[i], lines[i+1]
			i += 2
		case i+2 < len(lines) && isLine(lines[i+1], '1') && isLine(lines[i+2], '2'):
			name, line1, line2 = lines[i], lines[i+1], lines[i+2]
			i += 3
		default:
			// Try to find next valid entry.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "line", lines[i])
			metrics.IncTLERejected("structure")
			i++
			continue
		}

		elems, err := New(line1, line2)
		if err != nil {
			reason := "ingest"
			var me *MalformedError
			if errors.As(err, &me) && me.cause == nil {
				reason = "length"
			}
			logger.Warn("skipping invalid TLE entry", "name", strings.TrimSpace(name), "error", err)
			metrics.IncTLERejected(reason)
			continue
		}

		epoch, _ := elems.Epoch()
		l1, l2 := elems.Lines()
		entries = append(entries, TLEEntry{
			NORADID:  elems.NORADID(),
			Name:     strings.TrimSpace(name),
			Epoch:    epoch,
			Line1:    l1,
			Line2:    l2,
			Elements: elems,
		})
	}

	return entries, nil
}

func isLine(s string, number byte) bool {
	s = strings.TrimSpace(s)
	return len(s) > 2 && s[0] == number && s[1] == ' '
}
