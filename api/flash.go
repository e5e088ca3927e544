package api

import (
	"encoding/base64"
	"net/http"
	"strings"
)

const flashCookie = "diary_flash"

// setFlash queues messages for the next rendered page.
func setFlash(w http.ResponseWriter, r *http.Request, message ...string) {
	messages := append(readFlash(r), message...)
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(strings.Join(messages, "\n"))),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func readFlash(r *http.Request) []string {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	return strings.Split(string(raw), "\n")
}

// popFlash returns the queued messages and clears the cookie.
func popFlash(w http.ResponseWriter, r *http.Request) []string {
	messages := readFlash(r)
	if messages != nil {
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	}
	return messages
}
