package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a wrapped handler", t, func() {
		h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}, "teapot")

		Convey("The handler's status reaches the client", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/teapot", nil))
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})
	})

	Convey("Statuses map to error classes", t, func() {
		So(errorClass(http.StatusOK), ShouldBeEmpty)
		So(errorClass(http.StatusFound), ShouldBeEmpty)
		So(errorClass(http.StatusNotFound), ShouldEqual, "not_found")
		So(errorClass(http.StatusBadRequest), ShouldEqual, "client_error")
		So(errorClass(http.StatusServiceUnavailable), ShouldEqual, "not_ready")
		So(errorClass(http.StatusInternalServerError), ShouldEqual, "server_error")
	})
}
