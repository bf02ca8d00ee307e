package main

import (
	"errors"
	"net/http"

	"github.com/sells-group/product-battle/internal/model"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind     string        `json:"kind"`
	Message  string        `json:"message"`
	Key      string        `json:"key,omitempty"`
	Failures []sideFailure `json:"failures,omitempty"`
}

type sideFailure struct {
	Side    string `json:"side"`
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind model.Kind) int {
	switch kind {
	case model.KindInvalidName, model.KindDuplicateInput:
		return http.StatusBadRequest
	case model.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case model.KindPartialAnalysis, model.KindAnalysisParse, model.KindInvalidScore:
		return http.StatusBadGateway
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorBodyFor renders err for API clients. Internal errors keep their
// message so operators can see what failed.
func errorBodyFor(err error) errorBody {
	kind := model.KindOf(err)
	body := errorBody{
		Kind:    string(kind),
		Message: err.Error(),
		Key:     model.KeyOf(err),
	}
	switch kind {
	case model.KindInvalidName:
		body.Message = "Both product names are required and must contain letters or digits"
	case model.KindDuplicateInput:
		body.Message = "Please enter two different products"
	case model.KindInternal:
		body.Message = "Analysis failed: " + err.Error()
	}

	var pe *model.PartialAnalysisError
	if errors.As(err, &pe) {
		body.Key = ""
		for _, f := range pe.Failures {
			body.Failures = append(body.Failures, sideFailure{
				Side:    f.Side,
				Key:     f.Key,
				Kind:    string(model.KindOf(f.Err)),
				Message: f.Err.Error(),
			})
		}
	}
	return body
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(model.KindOf(err)), errorResponse{Error: errorBodyFor(err)})
}
