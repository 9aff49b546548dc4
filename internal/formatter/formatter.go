// package formatter exports the play queue to CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past an hour. Unknown durations render as --:--.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "--:--"
	}

	total := int(math.Round(seconds))
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ExportToCSV writes one row per track with columns: Position, ID, Title, Artist, Album, Duration, Language, Year, Source
func ExportToCSV(export *models.QueueExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artist", "Album", "Duration", "Language", "Year", "Source"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range export.All() {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Title,
			track.ArtistName,
			track.Album,
			strconv.FormatFloat(track.Duration, 'f', -1, 64),
			track.Language,
			track.Year,
			track.Src,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the queue as a Markdown document with an optional cover image
func ExportToMarkdown(export *models.QueueExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", exportName(export))

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Current != nil {
		fmt.Fprintf(&buf, "**Now Playing**: %s - %s [%s]\n\n",
			export.Current.ArtistName, export.Current.Title, FormatDuration(export.Current.Duration))
	}

	fmt.Fprintf(&buf, "**Up Next**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Total Time**: %s\n\n", FormatDuration(export.TotalDuration()))

	buf.WriteString("## Queue\n\n")
	if len(export.Tracks) == 0 {
		buf.WriteString("_The queue is empty._\n")
	}
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, track.ArtistName, track.Title, albumPart, FormatDuration(track.Duration))
	}

	return buf.Bytes(), nil
}

// ExportToText renders the queue as plain text
func ExportToText(export *models.QueueExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Queue: %s\n", exportName(export))
	if export.Current != nil {
		fmt.Fprintf(&buf, "Now Playing: %s - %s\n", export.Current.ArtistName, export.Current.Title)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.ArtistName, track.Title)
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the full export, including sources, as indented JSON
func ExportToJSON(export *models.QueueExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders export in the given format. Markdown is rendered without a cover.
func Export(export *models.QueueExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export, "")
	case FormatText:
		return ExportToText(export)
	case FormatJSON:
		return ExportToJSON(export)
	}
	return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
}

func exportName(export *models.QueueExport) string {
	if export.Name != "" {
		return export.Name
	}
	return "Queue"
}

// ExportResult lists the files written by [Exporter.Write].
type ExportResult struct {
	Path       string
	Files      []string
	CoverImage string
}

// Exporter writes exports to disk, fetching cover art for Markdown exports.
type Exporter struct {
	client *http.Client
	logger *log.Logger
}

// NewExporter creates an Exporter. A nil client uses [http.DefaultClient].
func NewExporter(client *http.Client, logger *log.Logger) *Exporter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Exporter{client: client, logger: logger}
}

// Write exports the queue to path.
//
// CSV, text and JSON are written to a single file (default queue.{format}).
// Markdown creates a directory (default "queue") holding README.md and, when the queue
// has artwork, cover.jpg. A failed cover download is logged and skipped.
func (e *Exporter) Write(ctx context.Context, export *models.QueueExport, format Format, path string) (*ExportResult, error) {
	if format == FormatMarkdown {
		return e.writeMarkdown(ctx, export, path)
	}

	if path == "" {
		path = "queue." + string(format)
	}

	data, err := Export(export, format)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return &ExportResult{Path: path, Files: []string{path}}, nil
}

func (e *Exporter) writeMarkdown(ctx context.Context, export *models.QueueExport, dir string) (*ExportResult, error) {
	if dir == "" {
		dir = "queue"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{Path: dir}

	var coverFilename string
	if url := export.Cover(); url != "" {
		coverPath := filepath.Join(dir, "cover.jpg")
		if data, err := DownloadImage(ctx, e.client, url); err != nil {
			e.logger.Warn("failed to download cover image", "url", url, "error", err)
		} else if err := os.WriteFile(coverPath, data, 0644); err != nil {
			e.logger.Warn("failed to save cover image", "path", coverPath, "error", err)
		} else {
			coverFilename = "cover.jpg"
			result.CoverImage = coverPath
			result.Files = append(result.Files, coverPath)
		}
	}

	mdData, err := ExportToMarkdown(export, coverFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

// DownloadImage fetches an image and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}
