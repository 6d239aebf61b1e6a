package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/inkwell/internal/form"
	"github.com/sakif/inkwell/internal/service"
)

// ContactHandler serves the contact form.
type ContactHandler struct {
	contact *service.ContactService
	pages   *Renderer
	logger  *slog.Logger
}

func NewContactHandler(contact *service.ContactService, pages *Renderer, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{contact: contact, pages: pages, logger: logger}
}

// HandleContact shows the form (GET) or mails the message (POST). Invalid
// input re-renders the form and sends nothing. A delivery failure keeps the
// reader's text on the page so it can be resent.
//
// HTTP: GET/POST /contact
func (h *ContactHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.render(w, r, http.StatusOK, form.ContactForm{}, nil, false)
		return
	}

	var f form.ContactForm
	if errs := decodeAndValidate(r, &f); errs != nil {
		h.render(w, r, http.StatusUnprocessableEntity, f, errs, false)
		return
	}

	if err := h.contact.Submit(r.Context(), f); err != nil {
		if status, ok := formStatus(err); ok {
			errs := form.Errors{}
			errs.AddError(err)
			h.render(w, r, status, f, errs, false)
			return
		}
		h.render(w, r, http.StatusServiceUnavailable, f, form.Errors{
			"form": "Sorry, your message could not be sent. Please try again later.",
		}, false)
		return
	}

	h.render(w, r, http.StatusOK, form.ContactForm{}, nil, true)
}

func (h *ContactHandler) render(w http.ResponseWriter, r *http.Request, status int, f form.ContactForm, errs form.Errors, sent bool) {
	h.pages.Render(w, r, status, "contact", Page{
		Form:   f,
		Errors: errs,
		Data:   map[string]any{"Sent": sent},
	})
}
