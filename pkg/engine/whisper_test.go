package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhisperTranscribe(t *testing.T) {
	var gotFilename string
	var gotAudio string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		data, _ := io.ReadAll(file)
		gotAudio = string(data)
		if r.FormValue("response_format") != "verbose_json" {
			http.Error(w, "expected verbose_json", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"text": " Standup notes. ",
			"language": "en",
			"segments": [
				{"start": 0.0, "end": 2.5, "text": " Standup"},
				{"start": 2.5, "end": 4.0, "text": " notes."}
			]
		}`))
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL)
	result, err := client.Transcribe(context.Background(), strings.NewReader("audio-bytes"), "meeting.m4a")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotFilename != "meeting.m4a" {
		t.Errorf("filename = %q, want meeting.m4a", gotFilename)
	}
	if gotAudio != "audio-bytes" {
		t.Errorf("audio = %q, want audio-bytes", gotAudio)
	}
	if result.Text != "Standup notes." {
		t.Errorf("text = %q", result.Text)
	}
	if result.Language != "en" {
		t.Errorf("language = %q, want en", result.Language)
	}
	if len(result.Segments) != 2 || result.Segments[1].Text != "notes." || result.Segments[1].End != 4.0 {
		t.Errorf("unexpected segments: %+v", result.Segments)
	}
}

func TestWhisperTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL)
	_, err := client.Transcribe(context.Background(), strings.NewReader("x"), "a.wav")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error should carry server message, got %v", err)
	}
}

func TestWhisperTranscribeEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   ","segments":[]}`))
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL)
	if _, err := client.Transcribe(context.Background(), strings.NewReader("x"), "a.wav"); err == nil {
		t.Fatal("blank transcription should be an error")
	}
}
