package iface

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type HttpHandler func(request *http.Request, params httprouter.Params) (HttpResult, error)

type HttpResultRender func(w http.ResponseWriter) error

type HttpResult interface {
	Render(w http.ResponseWriter) error
}

type wrappedResultRender struct {
	render HttpResultRender
}

func (wr wrappedResultRender) Render(w http.ResponseWriter) error {
	return wr.render(w)
}

func WrapResultRender(render HttpResultRender) HttpResult {
	return wrappedResultRender{render: render}
}

// JsonResult renders object as the response body. Record responses must not
// be cached by intermediaries since replicas change them at any time.
func JsonResult(status int, object any) HttpResult {
	return WrapResultRender(func(w http.ResponseWriter) error {
		data, err := json.Marshal(object)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_, err = w.Write(data)
		return err
	})
}

type HttpError struct {
	Error string `json:"error"`
}

func JsonErrorResult(status int, msg string) HttpResult {
	return JsonResult(status, HttpError{Error: msg})
}

func StatusOnlyResult(status int) HttpResult {
	return WrapResultRender(func(w http.ResponseWriter) error {
		w.WriteHeader(status)
		return nil
	})
}
