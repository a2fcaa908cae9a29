// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibetunnel/vibetunnel/lib/clock"
	"github.com/vibetunnel/vibetunnel/lib/codec"
)

var epoch = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonBody(repeat int) []byte {
	return []byte(`{"type":"event","category":"terminal","data":"` + strings.Repeat("output line ", repeat) + `"}`)
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd, CompressionAuto} {
		t.Run(compression.String(), func(t *testing.T) {
			fake := clock.Fake(epoch)
			var buffer bytes.Buffer
			writer, err := NewWriter(&buffer, Options{
				SocketPath:  "/tmp/control.sock",
				Compression: compression,
				Clock:       fake,
				Logger:      quietLogger(),
			})
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}

			bodies := [][]byte{[]byte(`{"a":1}`), jsonBody(200), {}}
			writer.RecordOutbound(bodies[0])
			fake.Advance(time.Second)
			writer.RecordInbound(bodies[1])
			writer.RecordOutbound(bodies[2])
			if writer.Records() != 3 {
				t.Fatalf("Records() = %d, want 3", writer.Records())
			}

			reader, err := NewReader(&buffer)
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			header := reader.Header()
			if header.SessionID != writer.SessionID() {
				t.Errorf("header session %q, want %q", header.SessionID, writer.SessionID())
			}
			if header.SocketPath != "/tmp/control.sock" || !header.StartedAt.Equal(epoch) {
				t.Errorf("header = %+v", header)
			}

			frames, err := reader.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if len(frames) != len(bodies) {
				t.Fatalf("got %d frames, want %d", len(frames), len(bodies))
			}
			wantDirections := []Direction{DirectionOutbound, DirectionInbound, DirectionOutbound}
			for i, frame := range frames {
				if !bytes.Equal(frame.Body, bodies[i]) {
					t.Errorf("frame %d body = %q, want %q", i, frame.Body, bodies[i])
				}
				if frame.Direction != wantDirections[i] {
					t.Errorf("frame %d direction = %s, want %s", i, frame.Direction, wantDirections[i])
				}
				if frame.Digest != DigestFrame(bodies[i]) {
					t.Errorf("frame %d digest mismatch", i)
				}
			}
			if !frames[1].Timestamp.Equal(epoch.Add(time.Second)) {
				t.Errorf("frame 1 timestamp = %v", frames[1].Timestamp)
			}
		})
	}
}

func TestCompressionIsApplied(t *testing.T) {
	body := jsonBody(500)
	for _, compression := range []Compression{CompressionLZ4, CompressionZstd} {
		var buffer bytes.Buffer
		writer, err := NewWriter(&buffer, Options{Compression: compression, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		if err := writer.Write(DirectionInbound, body); err != nil {
			t.Fatalf("Write: %v", err)
		}
		reader, err := NewReader(&buffer)
		if err != nil {
			t.Fatalf("NewReader: %v", err)
		}
		frame, err := reader.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if frame.Compression != compression {
			t.Errorf("%s: stored with %s", compression, frame.Compression)
		}
		if frame.StoredSize >= len(body) {
			t.Errorf("%s: stored %d bytes for a %d byte body", compression, frame.StoredSize, len(body))
		}
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	stored, algorithm, err := compress([]byte(`{}`), CompressionZstd)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if algorithm != CompressionNone || string(stored) != `{}` {
		t.Errorf("compress tiny body = (%q, %s), want stored as none", stored, algorithm)
	}
}

func TestDigestMismatchDetected(t *testing.T) {
	var buffer bytes.Buffer
	encoder := codec.NewEncoder(&buffer)
	if err := encoder.Encode(Header{Format: FormatName, Version: FormatVersion, SessionID: "s"}); err != nil {
		t.Fatal(err)
	}
	digest := DigestFrame([]byte(`{"a":1}`))
	if err := encoder.Encode(Record{
		Direction:   DirectionInbound,
		Compression: "none",
		Size:        7,
		Digest:      digest[:],
		Data:        []byte(`{"a":2}`),
	}); err != nil {
		t.Fatal(err)
	}

	reader, err := NewReader(&buffer)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := reader.Next(); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("Next() error = %v, want ErrDigestMismatch", err)
	}
}

func TestRejectsForeignHeader(t *testing.T) {
	data, err := codec.Marshal(Header{Format: "something-else", Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(bytes.NewReader(data)); !errors.Is(err, ErrNotCapture) {
		t.Errorf("foreign format error = %v, want ErrNotCapture", err)
	}

	data, err = codec.Marshal(Header{Format: FormatName, Version: FormatVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(bytes.NewReader(data)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("future version error = %v, want ErrUnsupportedVersion", err)
	}

	if _, err := NewReader(bytes.NewReader(nil)); !errors.Is(err, ErrNotCapture) {
		t.Errorf("empty input error = %v, want ErrNotCapture", err)
	}
}

func TestCreateAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.vtcap")
	writer, err := Create(path, Options{Compression: CompressionAuto, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	writer.RecordOutbound([]byte(`{"type":"request","category":"system","action":"ping"}`))
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Recording after Close is ignored.
	writer.RecordOutbound([]byte(`{"late":true}`))

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()
	frames, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(data []byte) (int, error) {
	f.writes++
	if f.writes > 1 {
		return 0, errors.New("disk full")
	}
	return len(data), nil
}

func TestWriteFailureDisablesRecording(t *testing.T) {
	destination := &failingWriter{}
	var logs bytes.Buffer
	writer, err := NewWriter(destination, Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	writer.RecordOutbound([]byte(`{"a":1}`))
	writer.RecordInbound([]byte(`{"b":2}`))
	writer.RecordOutbound([]byte(`{"c":3}`))

	if destination.writes != 2 {
		t.Errorf("destination saw %d writes, want header plus one failed record", destination.writes)
	}
	if count := strings.Count(logs.String(), "frame capture disabled"); count != 1 {
		t.Errorf("logged %d failures, want 1:\n%s", count, logs.String())
	}
	if writer.Records() != 0 {
		t.Errorf("Records() = %d, want 0", writer.Records())
	}
}

func TestConcurrentRecording(t *testing.T) {
	var buffer bytes.Buffer
	writer, err := NewWriter(&buffer, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	var waitGroup sync.WaitGroup
	for range 8 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for range 50 {
				writer.RecordInbound([]byte(`{"x":1}`))
			}
		}()
	}
	waitGroup.Wait()

	reader, err := NewReader(&buffer)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	frames, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != 400 {
		t.Errorf("got %d frames, want 400", len(frames))
	}
}

func TestDiagnose(t *testing.T) {
	var buffer bytes.Buffer
	writer, err := NewWriter(&buffer, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	writer.RecordInbound([]byte(`{"a":1}`))

	var output bytes.Buffer
	if err := Diagnose(buffer.Bytes(), &output); err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d diagnostic lines, want 2:\n%s", len(lines), output.String())
	}
	if !strings.Contains(lines[0], FormatName) || !strings.Contains(lines[1], `"inbound"`) {
		t.Errorf("unexpected notation:\n%s", output.String())
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd", "auto"} {
		parsed, err := ParseCompression(name)
		if err != nil {
			t.Errorf("ParseCompression(%q): %v", name, err)
			continue
		}
		if parsed.String() != name {
			t.Errorf("ParseCompression(%q).String() = %q", name, parsed.String())
		}
	}
	if parsed, err := ParseCompression(""); err != nil || parsed != CompressionNone {
		t.Errorf("ParseCompression(\"\") = %v, %v", parsed, err)
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip) should fail")
	}
}
