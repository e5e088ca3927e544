package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpupo63/diary-backend/errs"
)

func TestWriteError_HidesServerCauses(t *testing.T) {
	responder := NewResponder(zerolog.Nop())

	rec := httptest.NewRecorder()
	responder.WriteError(rec, errs.NewDatabaseError("find", "diary_entries",
		errors.New(`pq: relation "diary_entries_secret" does not exist`)))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "diary_entries_secret")
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Cause)
	assert.Equal(t, "Failed to find diary_entries", resp.Details)
}

func TestWriteError_KeepsClientCauses(t *testing.T) {
	responder := NewResponder(zerolog.Nop())

	rec := httptest.NewRecorder()
	responder.WriteError(rec, errs.NewInvalidJSONError(errors.New("unexpected EOF")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "json", resp.Field)
	assert.Contains(t, resp.Cause, "unexpected EOF")
}
