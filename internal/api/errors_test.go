package api

import (
	"errors"
	"reflect"
	"testing"
)

func TestNetworkError_Sentinel(t *testing.T) {
	e := networkError(errors.New("dial tcp: connection refused"))

	if e.Kind != KindNetwork {
		t.Errorf("expected KindNetwork, got %v", e.Kind)
	}
	if e.Status != StatusNetworkError {
		t.Errorf("expected sentinel status %d, got %d", StatusNetworkError, e.Status)
	}
	if e.Summary() != "dial tcp: connection refused" {
		t.Errorf("expected underlying message as summary, got %q", e.Summary())
	}
}

func TestHTTPError_ValidationClassification(t *testing.T) {
	e := httpError(400, []byte(`{"email":["This field is required."],"name":["Too short."]}`))
	if e.Kind != KindValidation {
		t.Errorf("expected KindValidation, got %v", e.Kind)
	}

	// detail/message-only bodies are plain HTTP errors.
	e = httpError(400, []byte(`{"detail":"Bad request."}`))
	if e.Kind != KindHTTP {
		t.Errorf("expected KindHTTP for detail-only body, got %v", e.Kind)
	}

	// 5xx is never a validation failure.
	e = httpError(500, []byte(`{"email":["nope"]}`))
	if e.Kind != KindHTTP {
		t.Errorf("expected KindHTTP for 5xx, got %v", e.Kind)
	}

	// Non-object bodies are plain HTTP errors.
	e = httpError(404, []byte(`not found`))
	if e.Kind != KindHTTP {
		t.Errorf("expected KindHTTP for non-JSON body, got %v", e.Kind)
	}
}

func TestError_Summary(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"detail", &Error{Body: []byte(`{"detail":"No such patient."}`)}, "No such patient."},
		{"message", &Error{Body: []byte(`{"message":"Upstream offline."}`)}, "Upstream offline."},
		{"detail wins", &Error{Body: []byte(`{"detail":"A.","message":"B."}`)}, "A."},
		{"own message", &Error{Message: "timeout"}, "timeout"},
		{"fallback", &Error{Body: []byte(`[]`)}, "Something went wrong."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Summary(); got != tc.want {
				t.Errorf("Summary() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestError_FieldDetails(t *testing.T) {
	e := &Error{Body: []byte(`{
		"detail": "Validation failed.",
		"message": "ignored",
		"email": ["This field is required.", "Enter a valid email."],
		"age": "must be positive"
	}`)}

	got := e.FieldDetails()
	want := []string{
		"age: must be positive",
		"email: This field is required., Enter a valid email.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FieldDetails() = %v, want %v", got, want)
	}
}

func TestError_FieldDetailsNonObject(t *testing.T) {
	e := &Error{Body: []byte(`"just a string"`)}
	if got := e.FieldDetails(); len(got) != 0 {
		t.Errorf("expected no details for non-object body, got %v", got)
	}
}

func TestAuthExpiredError_PreservesOriginalBody(t *testing.T) {
	e := authExpiredError([]byte(`{"detail":"Token invalid."}`))
	if e.Kind != KindAuthExpired {
		t.Errorf("expected KindAuthExpired, got %v", e.Kind)
	}
	if e.Status != 401 {
		t.Errorf("expected status 401, got %d", e.Status)
	}
	if e.Summary() != "Token invalid." {
		t.Errorf("expected original 401 body to drive the summary, got %q", e.Summary())
	}
}
