package handlers

import (
	"errors"
	"net/http"
	"strconv"
)

const defaultPageLimit = 100

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int64
	Offset int64
}

// parsePage reads limit and offset, clamping limit to maxLimit.
func parsePage(r *http.Request, maxLimit int) (Page, error) {
	p := Page{Limit: defaultPageLimit}
	if maxLimit > 0 && p.Limit > int64(maxLimit) {
		p.Limit = int64(maxLimit)
	}

	if ls := r.URL.Query().Get("limit"); ls != "" {
		v, err := strconv.ParseInt(ls, 10, 64)
		if err != nil || v <= 0 {
			return Page{}, errors.New("invalid limit parameter")
		}
		p.Limit = v
	}
	if maxLimit > 0 && p.Limit > int64(maxLimit) {
		p.Limit = int64(maxLimit)
	}

	if offs := r.URL.Query().Get("offset"); offs != "" {
		v, err := strconv.ParseInt(offs, 10, 64)
		if err != nil || v < 0 {
			return Page{}, errors.New("invalid offset parameter")
		}
		p.Offset = v
	}
	return p, nil
}
