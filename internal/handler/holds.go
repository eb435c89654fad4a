package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) listHolds(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	encodeHolds(&e, h.reg.Holds())
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) hold(w http.ResponseWriter, r *http.Request) {
	i, err := h.reg.Hold()
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("index")
	e.Int(i)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) restoreHold(w http.ResponseWriter, r *http.Request) {
	i, err := holdIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var discard bool
	err = readObject(r, func(d *jx.Decoder, key string) error {
		if key != "discard" {
			return d.Skip()
		}
		var err error
		discard, err = d.Bool()
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.reg.RestoreHold(i, discard); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) deleteHold(w http.ResponseWriter, r *http.Request) {
	i, err := holdIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.reg.DeleteHold(i); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearHolds(w http.ResponseWriter, _ *http.Request) {
	h.reg.ClearHolds()
	w.WriteHeader(http.StatusNoContent)
}
