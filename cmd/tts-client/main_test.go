package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultOutputName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		inputFile string
		expected  string
	}{
		{name: "no input file", inputFile: "", expected: "output.wav"},
		{name: "plain text file", inputFile: "chapter1.txt", expected: "chapter1.wav"},
		{name: "nested path", inputFile: "/books/intro.md", expected: "intro.wav"},
		{
			name:      "invalid characters sanitized",
			inputFile: "draft?v2.txt",
			expected:  "draft_v2.wav",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := defaultOutputName(testCase.inputFile)
			if result != testCase.expected {
				t.Errorf("Expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

func TestResolveInputText(t *testing.T) {
	t.Parallel()

	t.Run("neither flag", func(t *testing.T) {
		t.Parallel()

		_, err := resolveInputText(appFlags{})
		if err == nil {
			t.Fatal("Expected error when neither --text nor --file is given")
		}
	})

	t.Run("both flags", func(t *testing.T) {
		t.Parallel()

		_, err := resolveInputText(appFlags{text: "hi", file: "a.txt"})
		if err == nil {
			t.Fatal("Expected error when both --text and --file are given")
		}
	})

	t.Run("text flag wins", func(t *testing.T) {
		t.Parallel()

		text, err := resolveInputText(appFlags{text: "hello"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if text != "hello" {
			t.Errorf("Expected %q, got %q", "hello", text)
		}
	})

	t.Run("unsupported file extension", func(t *testing.T) {
		t.Parallel()

		_, err := resolveInputText(appFlags{file: "audio.wav"})
		if !errors.Is(err, errUnsupportedInputFile) {
			t.Errorf("Expected errUnsupportedInputFile, got %v", err)
		}
	})

	t.Run("reads file contents", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "input.txt")

		err := os.WriteFile(path, []byte("Some text."), 0o600)
		if err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}

		text, err := resolveInputText(appFlags{file: path})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if text != "Some text." {
			t.Errorf("Expected file contents, got %q", text)
		}
	})
}
