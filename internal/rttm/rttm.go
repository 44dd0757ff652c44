// Package rttm reads and writes the Rich Transcription Time Marked format
// emitted by diarization tools:
//
//	SPEAKER <file> <channel> <onset> <duration> <NA> <NA> <speaker> <NA> <NA>
//
// Only SPEAKER records are interpreted; other record types are skipped.
package rttm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"debatelens/internal/services"
)

// Turn is one SPEAKER record.
type Turn struct {
	File     string
	Channel  int
	Onset    float64
	Duration float64
	Speaker  string
}

// End returns Onset+Duration.
func (t Turn) End() float64 {
	return t.Onset + t.Duration
}

const speakerType = "SPEAKER"

// Parse reads SPEAKER records from r. A malformed SPEAKER line yields an error
// marked services.ErrMalformed that names the line number.
func Parse(r io.Reader) ([]Turn, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var turns []Turn
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] != speakerType {
			continue
		}
		turn, err := parseFields(fields)
		if err != nil {
			return nil, services.Wrap(services.ErrMalformed, "", "parse rttm", fmt.Sprintf("line %d", lineNo), err)
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrMalformed, "", "read rttm", "", err)
	}
	return turns, nil
}

func parseFields(fields []string) (Turn, error) {
	if len(fields) < 8 {
		return Turn{}, fmt.Errorf("expected at least 8 fields, got %d", len(fields))
	}
	channel, err := strconv.Atoi(fields[2])
	if err != nil {
		return Turn{}, fmt.Errorf("channel %q: %w", fields[2], err)
	}
	onset, err := parseSeconds(fields[3])
	if err != nil {
		return Turn{}, fmt.Errorf("onset %q: %w", fields[3], err)
	}
	duration, err := parseSeconds(fields[4])
	if err != nil {
		return Turn{}, fmt.Errorf("duration %q: %w", fields[4], err)
	}
	speaker := fields[7]
	if speaker == "<NA>" {
		return Turn{}, fmt.Errorf("missing speaker label")
	}
	return Turn{
		File:     fields[1],
		Channel:  channel,
		Onset:    onset,
		Duration: duration,
		Speaker:  speaker,
	}, nil
}

func parseSeconds(value string) (float64, error) {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if parsed < 0 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("must be a non-negative number")
	}
	return parsed, nil
}

// Write renders turns as SPEAKER records with millisecond precision.
func Write(w io.Writer, turns []Turn) error {
	bw := bufio.NewWriter(w)
	for _, turn := range turns {
		file := turn.File
		if file == "" {
			file = "recording"
		}
		channel := turn.Channel
		if channel == 0 {
			channel = 1
		}
		if _, err := fmt.Fprintf(bw, "%s %s %d %.3f %.3f <NA> <NA> %s <NA> <NA>\n",
			speakerType, file, channel, turn.Onset, turn.Duration, turn.Speaker); err != nil {
			return err
		}
	}
	return bw.Flush()
}
