package warmup

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/consultcheckout/lib/mycontext"
	"github.com/MarcGrol/consultcheckout/lib/myerrors"
	"github.com/MarcGrol/consultcheckout/lib/myhttp"
	"github.com/MarcGrol/consultcheckout/lib/mylog"
)

// ScriptPreloader is satisfied by the collector script loader.
type ScriptPreloader interface {
	Preload(c context.Context) error
}

type webService struct {
	logger mylog.Logger
	loader ScriptPreloader
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewService(loader ScriptPreloader) *webService {
	return &webService{
		logger: mylog.New("warmup"),
		loader: loader,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/_ah/warmup", s.warmupPage()).Methods("GET")
}

// warmupPage loads the collector script before the first client needs it.
func (s *webService) warmupPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := s.loader.Preload(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewUnavailableError(err))
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed warmup request",
		})
	}
}
