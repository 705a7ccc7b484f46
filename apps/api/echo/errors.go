package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/enrollment"
	"github.com/masomo/lms/core/user"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// kindStatuses maps business error kinds to HTTP status codes.
var kindStatuses = map[enrollment.Kind]int{
	enrollment.KindCourseNotFound:      http.StatusNotFound,
	enrollment.KindEnrollmentNotFound:  http.StatusNotFound,
	enrollment.KindLessonNotInCourse:   http.StatusNotFound,
	enrollment.KindCourseNotAvailable:  http.StatusBadRequest,
	enrollment.KindInvalidTransition:   http.StatusBadRequest,
	enrollment.KindEnrollmentNotActive: http.StatusBadRequest,
	enrollment.KindCourseFull:          http.StatusConflict,
	enrollment.KindDuplicateEnrollment: http.StatusConflict,
	enrollment.KindForbidden:           http.StatusForbidden,
}

func kindStatus(kind enrollment.Kind) int {
	if code, ok := kindStatuses[kind]; ok {
		return code
	}
	return http.StatusBadRequest
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *enrollment.Error:
			code = kindStatus(origErr.Kind)
			message = echo.Map{"error": origErr.Msg, "kind": origErr.Kind}
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var actor user.Actor
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				actor = user.Actor{UserID: claims.Subject, Role: claims.Role}
			}
			logger.Error(msg, errors.Wrap(err, msg), actor)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
