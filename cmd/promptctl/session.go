package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const sessionFile = "session.json"

type session struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func loadSession(dir string) (*session, error) {
	data, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil || s.Token == "" {
		return nil, nil
	}
	return &s, nil
}

func saveSession(dir string, s session) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, sessionFile), data, 0o600)
}

func clearSession(dir string) error {
	err := os.Remove(filepath.Join(dir, sessionFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
