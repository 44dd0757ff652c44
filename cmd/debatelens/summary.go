package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"debatelens/internal/debate"
	"debatelens/internal/textutil"
)

const (
	unknownSpeaker   = "(unknown)"
	summaryTextLimit = 72
)

func renderSummary(doc debate.Document, colorize bool) string {
	meta := doc.Metadata
	stats := doc.Statistics

	var b strings.Builder
	for _, line := range renderSectionHeader("Debate", colorize) {
		b.WriteString(line + "\n")
	}
	b.WriteString(renderFieldLine("Source", meta.Source) + "\n")
	b.WriteString(renderFieldLine("Duration", formatClock(meta.Duration)) + "\n")
	b.WriteString(renderFieldLine("Chunks", fmt.Sprintf("%d (%gs, %gs overlap)", meta.ChunkCount, meta.ChunkSeconds, meta.OverlapSeconds)) + "\n")
	b.WriteString(renderFieldLine("Segments", fmt.Sprintf("%d covering %s", stats.TotalSegments, formatClock(stats.TotalDuration))) + "\n")
	b.WriteString(renderFieldLine("Speakers", speakerList(stats)) + "\n")
	if meta.RunID != "" {
		b.WriteString(renderFieldLine("Run", meta.RunID) + "\n")
	}
	if stats.FailureCount > 0 {
		b.WriteString(renderStatusLine("Failures", statusWarn, fmt.Sprintf("%d item(s) missing", stats.FailureCount), colorize) + "\n")
	} else {
		b.WriteString(renderStatusLine("Failures", statusOK, "none", colorize) + "\n")
	}

	b.WriteString("\n" + renderStanceTable(doc) + "\n")
	if len(doc.Segments) > 0 {
		b.WriteString(renderSpeakerTable(doc.Segments) + "\n")
	}
	if len(doc.Missing) > 0 {
		b.WriteString(renderFailureTable(doc.Missing) + "\n")
	}
	return b.String()
}

func speakerList(stats debate.Statistics) string {
	if stats.SpeakerCount == 0 {
		return "none"
	}
	return fmt.Sprintf("%d (%s)", stats.SpeakerCount, strings.Join(stats.Speakers, ", "))
}

func renderStanceTable(doc debate.Document) string {
	categories := append([]string(nil), doc.Metadata.Categories...)
	if len(categories) == 0 {
		for category := range doc.Statistics.StanceDistribution {
			categories = append(categories, category)
		}
		sort.Strings(categories)
	}
	rows := make([][]string, 0, len(categories))
	for _, category := range categories {
		count := doc.Statistics.StanceDistribution[category]
		rows = append(rows, []string{
			textutil.Title(category),
			strconv.Itoa(count),
			formatShare(count, doc.Statistics.TotalSegments),
		})
	}
	return renderTable([]string{"Stance", "Segments", "Share"}, rows, []columnAlignment{alignLeft, alignRight, alignRight})
}

func renderSpeakerTable(segments []debate.AnnotatedSegment) string {
	counts := map[string]int{}
	seconds := map[string]float64{}
	for _, seg := range segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = unknownSpeaker
		}
		counts[speaker]++
		seconds[speaker] += seg.End - seg.Start
	}
	speakers := make([]string, 0, len(counts))
	for speaker := range counts {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)

	rows := make([][]string, 0, len(speakers))
	for _, speaker := range speakers {
		rows = append(rows, []string{speaker, strconv.Itoa(counts[speaker]), formatClock(seconds[speaker])})
	}
	return renderTable([]string{"Speaker", "Segments", "Talk time"}, rows, []columnAlignment{alignLeft, alignRight, alignRight})
}

func renderSegmentTable(segments []debate.AnnotatedSegment) string {
	rows := make([][]string, 0, len(segments))
	for _, seg := range segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = unknownSpeaker
		}
		rows = append(rows, []string{
			seg.ID,
			formatSeconds(seg.Start),
			formatSeconds(seg.End),
			speaker,
			fmt.Sprintf("%s %.2f", textutil.Title(seg.Dominant), seg.Confidence),
			textutil.Truncate(textutil.CollapseSpace(seg.Text), summaryTextLimit),
		})
	}
	return renderTable(
		[]string{"ID", "Start", "End", "Speaker", "Stance", "Text"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func renderFailureTable(failures []debate.Failure) string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.Stage, f.Item, textutil.Truncate(f.Error, summaryTextLimit)})
	}
	return renderTable([]string{"Stage", "Item", "Error"}, rows, nil)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatClock renders seconds as a rounded duration such as 1h2m3s.
func formatClock(v float64) string {
	if v <= 0 {
		return "0s"
	}
	return (time.Duration(v * float64(time.Second))).Round(time.Second).String()
}

func formatShare(count, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(count)/float64(total))
}
