// handlers — REST-обработчики profiles-service поверх service.Service.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JeevanMahesha/studio/internal/service"
	apierrors "github.com/JeevanMahesha/studio/internal/transport/http/errors"
	"github.com/JeevanMahesha/studio/internal/transport/http/middleware"
)

// maxBodyBytes — предел тела запроса.
const maxBodyBytes = 1 << 20

// Handlers агрегирует зависимости.
type Handlers struct {
	Service *service.Service
}

func New(svc *service.Service) *Handlers {
	return &Handlers{Service: svc}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err)
	}

	return nil
}

// session — id сессии запроса (выставляет middleware.Session).
func session(r *http.Request) string {
	return middleware.SessionFrom(r.Context())
}

// queryInt32 читает неотрицательный int32 из query; отсутствующий — (0, false).
func queryInt32(r *http.Request, name string) (int32, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%w: %s must be a non-negative integer", apierrors.ErrBadRequest, name)
	}

	return int32(n), true, nil
}
