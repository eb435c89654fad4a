package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/wire"
)

func (h *Handler) listPrinters(w http.ResponseWriter, r *http.Request) {
	available, err := h.printers.Available(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("current")
	if cur, ok := h.printers.Current(); ok {
		wire.Printer(&e, cur)
	} else {
		e.Null()
	}
	e.FieldStart("printers")
	e.ArrStart()
	for _, p := range available {
		wire.Printer(&e, p)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) selectPrinter(w http.ResponseWriter, r *http.Request) {
	name, err := readText(r, "name")
	if err == nil && name == "" {
		err = badRequest("name is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.printers.Select(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e jx.Encoder
	wire.Printer(&e, p)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) writeSyncStatus(w http.ResponseWriter, r *http.Request, status int) {
	st, err := h.sync.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e jx.Encoder
	encodeStatus(&e, st)
	writeJSON(w, status, &e)
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	h.writeSyncStatus(w, r, http.StatusOK)
}

func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	h.sync.Trigger()
	h.writeSyncStatus(w, r, http.StatusAccepted)
}
