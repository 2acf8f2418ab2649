package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// decodeBody reads a JSON object from the request body, calling field for
// every key.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := jx.Decode(body, 512).Obj(field); err != nil {
		return errors.Wrap(errBadRequest, "invalid JSON body")
	}
	return nil
}

// pathID parses the int64 path value name.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(errBadRequest, "invalid %s", name)
	}
	return id, nil
}
