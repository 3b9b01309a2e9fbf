package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gpsreader/internal/gps"
	"gpsreader/internal/nmea"
	"gpsreader/internal/replay"
)

type logSummary struct {
	Segments    int
	Chunks      int
	Bytes       int
	Lines       int
	Overflows   int
	MaxDuration time.Duration
	KindCounts  map[nmea.Kind]int
}

// kindCounter frames lines exactly like the live pipeline but only
// classifies them.
type kindCounter struct {
	s *logSummary
}

func (k kindCounter) HandleLine(line []byte) {
	k.s.Lines++
	k.s.KindCounts[nmea.Classify(string(line), false)]++
}

func (k kindCounter) HandleOverflow() {
	k.s.Overflows++
}

func summarizeChunkLog(records []replay.Record) logSummary {
	s := logSummary{KindCounts: map[nmea.Kind]int{}}
	if len(records) == 0 {
		return s
	}

	r := gps.NewReader(gps.DefaultCapacity, kindCounter{&s}, nil)
	origin := time.Duration(0)
	hasChunks := false
	segments := 0

	for _, rec := range records {
		if rec.IsStart() {
			segments++
			origin = rec.At
			r.Reset()
			continue
		}
		hasChunks = true

		s.Chunks++
		s.Bytes += len(rec.Chunk)
		if at := rec.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}
		r.Append(rec.Chunk)
	}
	if segments == 0 && hasChunks {
		segments = 1
	}
	s.Segments = segments
	return s
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	s := summarizeChunkLog(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "bytes: %d\n", s.Bytes)
	fmt.Fprintf(w, "lines: %d\n", s.Lines)
	fmt.Fprintf(w, "overflows: %d\n", s.Overflows)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)

	kinds := make([]nmea.Kind, 0, len(s.KindCounts))
	for k := range s.KindCounts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	fmt.Fprintf(w, "kind_counts:\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, s.KindCounts[k])
	}
	return nil
}
