package util

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// SniffMimeAudio recognises the containers the inference service is usually fed.
func SniffMimeAudio(b []byte) string {
	// RIFF....WAVE
	if len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE" {
		return "audio/wav"
	}
	// ID3 tag or MPEG frame sync
	if len(b) >= 3 && string(b[0:3]) == "ID3" {
		return "audio/mpeg"
	}
	if len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0 {
		return "audio/mpeg"
	}
	if len(b) >= 4 && string(b[0:4]) == "fLaC" {
		return "audio/flac"
	}
	if len(b) >= 4 && string(b[0:4]) == "OggS" {
		return "audio/ogg"
	}
	return ""
}

// PickMIME prefers the explicit type, then the file extension, then the bytes.
func PickMIME(explicit, filename string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if ext := filepath.Ext(filename); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			return t
		}
	}
	if s := SniffMimeAudio(data); s != "" {
		return s
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}
