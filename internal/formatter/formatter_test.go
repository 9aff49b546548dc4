package formatter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
	th "github.com/desertthunder/rolx/internal/testing"
)

func sampleExport() *models.QueueExport {
	current := th.NewTrack("cur", "Kesariya", "Arijit Singh")
	one := th.NewTrack("t1", "Tum Hi Ho", "Arijit Singh")
	two := th.NewTrack("t2", "Raataan Lambiyan", "Jubin Nautiyal")
	two.Duration = 230.4
	two.Album = ""

	return &models.QueueExport{
		Name:       "Evening",
		Current:    &current,
		Tracks:     []models.Track{one, two},
		ExportedAt: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC),
	}
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "--:--"},
		{in: -3, want: "--:--"},
		{in: 5, want: "0:05"},
		{in: 180, want: "3:00"},
		{in: 230.4, want: "3:50"},
		{in: 3725, want: "1:02:05"},
	}

	for _, tt := range tc {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tc := map[string]Format{"csv": FormatCSV, "Markdown": FormatMarkdown, "md": FormatMarkdown, "text": FormatText, " json ": FormatJSON}
	for in, want := range tc {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}

		if len(records) != 4 {
			t.Fatalf("expected header and 3 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "Position,ID,Title,Artist,Album,Duration,Language,Year,Source" {
			t.Errorf("unexpected headers %v", records[0])
		}
		if records[1][1] != "cur" || records[2][2] != "Tum Hi Ho" || records[3][5] != "230.4" {
			t.Errorf("unexpected rows %v", records[1:])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(sampleExport(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Evening",
				"**Now Playing**: Arijit Singh - Kesariya [3:00]",
				"**Up Next**: 2",
				"**Total Time**: 9:50",
				"1. Arijit Singh - Tum Hi Ho (Tum Hi Ho (Single)) [3:00]",
				"2. Jubin Nautiyal - Raataan Lambiyan [3:50]",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("Markdown should not reference a cover")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, _ := ExportToMarkdown(sampleExport(), "cover.jpg")
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Error("Markdown missing cover reference")
			}
		})

		t.Run("empty queue", func(t *testing.T) {
			data, _ := ExportToMarkdown(&models.QueueExport{}, "")
			output := string(data)
			if !strings.Contains(output, "# Queue") || !strings.Contains(output, "_The queue is empty._") {
				t.Errorf("unexpected empty export:\n%s", output)
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		want := "Queue: Evening\nNow Playing: Arijit Singh - Kesariya\nTracks: 2\n\n" +
			"1. Arijit Singh - Tum Hi Ho\n2. Jubin Nautiyal - Raataan Lambiyan\n"
		if string(data) != want {
			t.Errorf("unexpected text export:\n%s", data)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleExport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded models.QueueExport
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Current == nil || decoded.Current.ID != "cur" || len(decoded.Tracks) != 2 {
			t.Errorf("unexpected decoded export %+v", decoded)
		}
	})

	t.Run("Export rejects unknown formats", func(t *testing.T) {
		if _, err := Export(sampleExport(), Format("xml")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(context.Background(), http.DefaultClient, ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Non200", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		if _, err := DownloadImage(context.Background(), srv.Client(), srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})
}

func TestExporterWrite(t *testing.T) {
	cover := []byte("jpeg-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write(cover)
	}))
	defer srv.Close()

	exporter := NewExporter(srv.Client(), shared.NewLogger(io.Discard))

	t.Run("single file formats", func(t *testing.T) {
		for _, format := range []Format{FormatCSV, FormatText, FormatJSON} {
			t.Run(string(format), func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "queue."+string(format))

				result, err := exporter.Write(context.Background(), sampleExport(), format, path)
				if err != nil {
					t.Fatalf("Write failed: %v", err)
				}

				th.AssertFileExists(t, result.Path)
				if !strings.Contains(th.MustReadFile(t, result.Path), "Tum Hi Ho") {
					t.Error("export missing track title")
				}
			})
		}
	})

	t.Run("markdown with cover", func(t *testing.T) {
		export := sampleExport()
		export.Current.Cover = srv.URL + "/cover.jpg"
		dir := filepath.Join(t.TempDir(), "evening")

		result, err := exporter.Write(context.Background(), export, FormatMarkdown, dir)
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		if result.CoverImage != filepath.Join(dir, "cover.jpg") {
			t.Errorf("unexpected cover path %q", result.CoverImage)
		}
		if th.MustReadFile(t, result.CoverImage) != string(cover) {
			t.Error("cover bytes mismatch")
		}
		if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "![Cover](cover.jpg)") {
			t.Error("README missing cover reference")
		}
		if len(result.Files) != 2 {
			t.Errorf("expected 2 files, got %v", result.Files)
		}
	})

	t.Run("markdown skips a broken cover", func(t *testing.T) {
		export := sampleExport()
		export.Current.Cover = srv.URL + "/missing.jpg"
		dir := filepath.Join(t.TempDir(), "evening")

		result, err := exporter.Write(context.Background(), export, FormatMarkdown, dir)
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		if result.CoverImage != "" {
			t.Errorf("expected no cover, got %q", result.CoverImage)
		}
		th.AssertFileMissing(t, filepath.Join(dir, "cover.jpg"))
		th.AssertFileExists(t, filepath.Join(dir, "README.md"))
	})
}
