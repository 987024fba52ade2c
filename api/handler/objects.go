package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/entitycache/api/transport"
	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/pkg/httpcontext"
	appLogger "github.com/fastygo/entitycache/pkg/logger"
	"github.com/fastygo/entitycache/repository"
	"github.com/fastygo/entitycache/usecase/objects"
)

const maxBatch = 100

// reservedFields are managed by the service; clients change visibility and tags through
// their own request fields.
var reservedFields = map[string]struct{}{
	domain.FieldID:         {},
	domain.FieldType:       {},
	domain.FieldTTL:        {},
	domain.FieldCreated:    {},
	domain.FieldUpdated:    {},
	domain.FieldPublished:  {},
	domain.FieldEdited:     {},
	domain.FieldExpires:    {},
	domain.FieldDeleted:    {},
	domain.FieldVisibility: {},
	domain.FieldOwner:      {},
	domain.FieldCreator:    {},
	domain.FieldACL:        {},
	domain.FieldTags:       {},
	domain.FieldRelTags:    {},
	domain.FieldVars:       {},
	domain.FieldPrevious:   {},
	domain.FieldNext:       {},
}

type ObjectHandler struct {
	baseHandler
	manager *objects.Manager
	lister  repository.RecordLister
}

// NewObjectHandler serves entities through manager. lister is optional and backs the
// list endpoint.
func NewObjectHandler(manager *objects.Manager, lister repository.RecordLister, adapter *httpcontext.Adapter, logger *zap.Logger) *ObjectHandler {
	return &ObjectHandler{
		baseHandler: newBaseHandler(adapter, logger),
		manager:     manager,
		lister:      lister,
	}
}

// @Summary Get object
// @Tags objects
// @Router /api/v1/objects/{type}/{id} [get]
func (h *ObjectHandler) Get(ctx *fasthttp.RequestCtx) {
	kind, ok := h.kind(ctx)
	if !ok {
		return
	}
	id := pathParam(ctx, "id")

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	cached := h.manager.GetDirect(id) != nil
	obj, err := h.manager.Get(stdCtx, id, nil, parseBool(ctx, "remote", true), kind)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	include := splitList(string(ctx.QueryArgs().Peek("fields")))
	exclude := splitList(string(ctx.QueryArgs().Peek("exclude")))
	subject := appLogger.Subject(stdCtx)
	var data map[string]any
	obj.Core().View(func(e *domain.Entity) {
		if err = checkReadable(e, kind, subject); err == nil {
			data = view(e, include, exclude)
		}
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(data, objectMeta(obj, cached, false)))
}

// @Summary Get several objects
// @Tags objects
// @Router /api/v1/objects/{type}/batch [post]
func (h *ObjectHandler) Batch(ctx *fasthttp.RequestCtx) {
	kind, ok := h.kind(ctx)
	if !ok {
		return
	}
	var req transport.BatchRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || len(req.IDs) == 0 {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "ids required", nil))
		return
	}
	if len(req.IDs) > maxBatch {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "too many ids", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	found, err := h.manager.GroupGet(stdCtx, req.IDs, nil, kind)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	subject := appLogger.Subject(stdCtx)
	out := make([]map[string]any, 0, len(found))
	for _, obj := range found {
		obj.Core().View(func(e *domain.Entity) {
			if checkReadable(e, kind, subject) == nil {
				out = append(out, view(e, nil, nil))
			}
		})
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(out, transport.ListMeta{Count: len(out)}))
}

// @Summary List objects
// @Tags objects
// @Router /api/v1/objects/{type} [get]
func (h *ObjectHandler) List(ctx *fasthttp.RequestCtx) {
	kind, ok := h.kind(ctx)
	if !ok {
		return
	}
	if h.lister == nil {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInternal, "listing not available"))
		return
	}
	filter := repository.RecordFilter{
		Type:    kind.TypeTag(),
		OwnerID: string(ctx.QueryArgs().Peek("owner")),
		Limit:   parseInt(string(ctx.QueryArgs().Peek("limit")), 50),
		Offset:  parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	recs, err := h.lister.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	subject := appLogger.Subject(stdCtx)
	out := make([]domain.Record, 0, len(recs))
	for _, rec := range recs {
		if kind.NewEntity(rec).IsVisibleTo(subject) {
			out = append(out, rec)
		}
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(out, transport.ListMeta{Count: len(out), Limit: filter.Limit, Offset: filter.Offset}))
}

// @Summary Create object
// @Tags objects
// @Router /api/v1/objects/{type} [post]
func (h *ObjectHandler) Create(ctx *fasthttp.RequestCtx) {
	kind, ok := h.kind(ctx)
	if !ok {
		return
	}
	req, ok := h.parseWrite(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	subject := appLogger.Subject(stdCtx)
	if subject == "" {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	obj := h.manager.Create(kind, subject)
	var id string
	obj.Core().Update(func(e *domain.Entity) {
		id = e.ID()
		h.apply(e, req)
	})
	buffered, err := h.manager.Persist(stdCtx, obj)
	if err != nil {
		h.manager.Untrack(id)
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusCreated, transport.NewSuccess(snapshot(obj), objectMeta(obj, true, buffered)))
}

// @Summary Update object
// @Tags objects
// @Router /api/v1/objects/{type}/{id} [put]
func (h *ObjectHandler) Update(ctx *fasthttp.RequestCtx) {
	kind, ok := h.kind(ctx)
	if !ok {
		return
	}
	req, ok := h.parseWrite(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	subject := appLogger.Subject(stdCtx)
	obj, err := h.load(stdCtx, kind, subject, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	obj.Core().Update(func(e *domain.Entity) {
		if err = checkWritable(e, kind, subject); err != nil {
			return
		}
		if req.Visibility != "" && subject != e.OwnerID() {
			err = domain.WrapError(domain.ErrCodeForbidden, "only the owner may change visibility", domain.ErrForbidden)
			return
		}
		h.apply(e, req)
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	buffered, err := h.manager.Persist(stdCtx, obj)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(snapshot(obj), objectMeta(obj, true, buffered)))
}

// @Summary Delete object
// @Tags objects
// @Router /api/v1/objects/{type}/{id} [delete]
func (h *ObjectHandler) Delete(ctx *fasthttp.RequestCtx) {
	kind, ok := h.kind(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	subject := appLogger.Subject(stdCtx)
	obj, err := h.load(stdCtx, kind, subject, pathParam(ctx, "id"))
	if err == nil {
		obj.Core().View(func(e *domain.Entity) {
			err = checkWritable(e, kind, subject)
		})
	}
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	obj.Core().SetDeleted()
	if _, err := h.manager.Persist(stdCtx, obj); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

func (h *ObjectHandler) kind(ctx *fasthttp.RequestCtx) (*domain.Kind, bool) {
	tag := pathParam(ctx, "type")
	kind, ok := h.manager.Registry().Lookup(tag).(*domain.Kind)
	if !ok {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeNotFound, "type "+strconv.Quote(tag), domain.ErrUnknownType))
		return nil, false
	}
	return kind, true
}

// load resolves the entity a signed-in subject wants to change. Permissions are checked
// by the caller under the entity lock.
func (h *ObjectHandler) load(ctx context.Context, kind *domain.Kind, subject, id string) (domain.Managed, error) {
	if subject == "" {
		return nil, domain.ErrUnauthorized
	}
	return h.manager.Get(ctx, id, nil, true, kind)
}

func (h *ObjectHandler) parseWrite(ctx *fasthttp.RequestCtx) (transport.WriteRequest, bool) {
	var req transport.WriteRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return req, false
	}
	for field := range req.Fields {
		if _, reserved := reservedFields[field]; reserved {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "field "+field+" is read-only", nil))
			return req, false
		}
	}
	for _, field := range req.Unset {
		if _, reserved := reservedFields[field]; reserved {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "field "+field+" is read-only", nil))
			return req, false
		}
	}
	return req, true
}

func (h *ObjectHandler) apply(e *domain.Entity, req transport.WriteRequest) {
	for field, value := range req.Fields {
		e.Set(field, value)
	}
	for _, field := range req.Unset {
		e.Unset(field)
	}
	if req.Visibility != "" {
		e.SetVisibility(req.Visibility)
	}
	e.AddTags(req.Tags...)
	if e.IsModified() {
		e.SetUpdatedTS(domain.NowMillis(h.manager.Cache().Clock().Now()))
	}
}

// checkReadable hides deleted objects, objects of another type and objects subject
// may not see. Callers hold the entity lock.
func checkReadable(e *domain.Entity, kind *domain.Kind, subject string) error {
	if e.IsDeleted() || e.TypeTag() != kind.TypeTag() || !e.IsVisibleTo(subject) {
		return domain.ObjectNotFound(kind.TypeTag(), e.ID())
	}
	return nil
}

func checkWritable(e *domain.Entity, kind *domain.Kind, subject string) error {
	if err := checkReadable(e, kind, subject); err != nil {
		return err
	}
	if !e.IsWritableBy(subject) {
		return domain.ErrForbidden
	}
	return nil
}

// view copies the filtered record so it can be encoded after the lock is released.
func view(e *domain.Entity, include, exclude []string) map[string]any {
	return domain.Record(e.ToJSON(include, exclude)).Clone()
}

func snapshot(obj domain.Managed) map[string]any {
	var out map[string]any
	obj.Core().View(func(e *domain.Entity) {
		out = view(e, nil, nil)
	})
	return out
}

func objectMeta(obj domain.Managed, cached, buffered bool) transport.ObjectMeta {
	meta := transport.ObjectMeta{Cached: cached, Buffered: buffered}
	if st, ok := obj.Core().Status(); ok {
		meta.Status = st.String()
	}
	return meta
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func parseBool(ctx *fasthttp.RequestCtx, name string, fallback bool) bool {
	if v, err := strconv.ParseBool(string(ctx.QueryArgs().Peek(name))); err == nil {
		return v
	}
	return fallback
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
