package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/helper"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/resilience"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseBreakerList struct {
	Status   WebServerResponse          `json:"status"`
	Breakers []resilience.BreakerStatus `json:"breakers"`
}

type ResponseBreakerReset struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	Key     string            `json:"key"`
}

type ResponseExtractLaunch struct {
	Status    WebServerResponse `json:"status"`
	Message   string            `json:"message"`
	LineageId string            `json:"lineageId"`
}

type ResponseRunStatus struct {
	Status    WebServerResponse `json:"status"`
	Message   string            `json:"message"`
	LineageId string            `json:"lineageId"`
	RunState  State             `json:"runState"`
	ExitCode  int               `json:"exitCode"`
}

// runLauncher starts extraction runs in the background and remembers their
// terminal results keyed by lineage id.
type runLauncher struct {
	log  logger.Logger
	orch *Orchestrator
	mu   sync.Mutex
	runs map[string]*ExtractionResult
}

func newRunLauncher(log logger.Logger, orch *Orchestrator) *runLauncher {
	return &runLauncher{log: log, orch: orch, runs: make(map[string]*ExtractionResult)}
}

// Launch validates and starts the run, returning its lineage id immediately.
func (l *runLauncher) Launch(request ExtractionRequest) (string, error) {
	if err := helper.ValidateStructIsPopulated(&request); err != nil {
		return "", errkind.Wrap(errkind.KindConfiguration, err)
	}
	handle, err := l.orch.Lineage.Start(request.ErpType, request.ClientId, request.DataType)
	if err != nil {
		return "", err
	}
	// The run is recorded as in flight until Run returns.
	l.mu.Lock()
	l.runs[handle.Id()] = &ExtractionResult{State: StateInitiated, LineageId: handle.Id()}
	l.mu.Unlock()
	go func() {
		result := l.orch.runWithHandle(context.Background(), request, handle)
		l.mu.Lock()
		l.runs[handle.Id()] = result
		l.mu.Unlock()
	}()
	return handle.Id(), nil
}

func (l *runLauncher) Status(lineageId string) (*ExtractionResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result, ok := l.runs[lineageId]
	return result, ok
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chanStop <- "stop"
		log.Info("Stop signal sent")
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerBreakerList(log logger.Logger, registry *resilience.Registry) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseBreakerList{Status: Okay, Breakers: registry.Snapshot()})
	}
}

func GetHandlerBreakerReset(log logger.Logger, registry *resilience.Registry) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		key := vars["key"]
		if registry.ResetBreaker(key) { // if the breaker exists...
			log.Info("Administrative reset of circuit breaker ", key)
			w.WriteHeader(http.StatusOK)
			respond(log, w, ResponseBreakerReset{Status: Okay, Message: "breaker reset", Key: key})
		} else { // else the key was never used...
			w.WriteHeader(http.StatusBadRequest)
			log.Info("HTTP request to reset unknown circuit breaker ", key)
			respond(log, w, ResponseBreakerReset{Status: Error, Message: "breaker does not exist", Key: key})
		}
	}
}

func GetHandlerExtractLaunch(log logger.Logger, runs *runLauncher) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Ingest the extraction request from the request body JSON.
		b, _ := ioutil.ReadAll(r.Body)
		request := ExtractionRequest{}
		if err := json.Unmarshal(b, &request); err != nil {
			logAndRespond(log, err, w,
				ResponseExtractLaunch{Status: Error, Message: fmt.Sprintf("error unmarshalling JSON: %v", err)})
			return
		}
		lineageId, err := runs.Launch(request)
		if err != nil {
			logAndRespond(log, err, w,
				ResponseExtractLaunch{Status: Error, Message: fmt.Sprintf("error launching extraction: %v", err)})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseExtractLaunch{Status: Okay, Message: "extraction launched", LineageId: lineageId})
	}
}

func GetHandlerRunStatus(log logger.Logger, runs *runLauncher) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["lineageId"]
		result, ok := runs.Status(id)
		if ok { // if the run exists...
			message := ""
			if result.Err != nil {
				message = result.Err.Error()
			}
			w.WriteHeader(http.StatusOK)
			respond(log, w, ResponseRunStatus{Status: Okay, Message: message, LineageId: id, RunState: result.State, ExitCode: result.ExitCode()})
		} else { // else the run doesn't exist...
			w.WriteHeader(http.StatusBadRequest)
			log.Info("HTTP request for status of run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStatus{Status: Error, Message: "run does not exist", LineageId: id})
		}
	}
}

// logAndRespond will log the error, write a http.StatusBadRequest and r to w.
func logAndRespond(log logger.Logger, err error, w http.ResponseWriter, r interface{}) {
	log.Error(err)
	w.WriteHeader(http.StatusBadRequest)
	respond(log, w, r)
}

// respond will marshal i to a string and write it to w.
func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprint(w, string(j))
	if err != nil {
		log.Panic(err)
	}
}
