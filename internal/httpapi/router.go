package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gitlab.com/dirk.krummacker/contacts/internal/metrics"
	"gitlab.com/dirk.krummacker/contacts/internal/service"
	"gitlab.com/dirk.krummacker/contacts/pkg/model"
)

// allowedAscending are the allowed values for the 'ascending' URL parameter.
var allowedAscending = []string{"true", "false"}

// colorKey is the JSON property holding the color of a contact.
const colorKey = "color"

type handler struct {
	gw     *service.Gateway
	logger *slog.Logger
}

// SetupHttpRouter initializes the REST API router and registers all endpoints. The router only
// talks to the gateway; it holds no state of its own.
func SetupHttpRouter(gw *service.Gateway, m *metrics.Metrics, logger *slog.Logger, requestLogging bool) *gin.Engine {
	var router *gin.Engine
	if requestLogging {
		router = gin.Default()
	} else {
		logger.Info("turning off HTTP request logging")
		router = gin.New()
		router.Use(gin.Recovery())
	}
	h := &handler{gw: gw, logger: logger}
	router.GET("/contacts", h.findContacts)
	router.POST("/contacts", h.createContact)
	router.DELETE("/contacts", h.deleteContactsByName)
	router.GET("/contacts/:id", h.findContactByID)
	router.PUT("/contacts/:id", h.updateContactByID)
	router.DELETE("/contacts/:id", h.deleteContactByID)
	router.GET("/events", h.streamEvents)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	return router
}

// findContacts responds with a list of contacts as JSON. An empty result is an empty list.
//
// The URL parameter 'search' matches contacts whose first name or last name contains the term,
// ignoring case and accents. The URL parameters 'firstname' and 'lastname' must be given together
// and match contacts with exactly this first name and last name. Both kinds of search cannot be
// combined.
//
// The URL parameter 'orderby' specifies the contact property by which the results shall be sorted.
// Valid values are 'id', 'firstname', 'lastname', 'birthday', 'zipcode' and 'phone'. If this URL
// parameter is not specified, the contacts will be sorted by id. If the URL parameter 'ascending'
// is set to 'false' then the sort order is reversed.
//
// The URL parameters 'limit' and 'offset' select a page of the sorted result.
//
// REST API calls:
//
//	> curl "http://localhost:8080/contacts"
//	> curl "http://localhost:8080/contacts?search=and"
//	> curl "http://localhost:8080/contacts?firstname=Jane&lastname=Goodall"
//	> curl "http://localhost:8080/contacts?limit=20&offset=60"
//	> curl "http://localhost:8080/contacts?orderby=lastname&ascending=false"
func (h *handler) findContacts(c *gin.Context) {
	predicate, success := parsePredicate(c)
	if !success {
		return
	}
	orderby, ascending, success := parseOrderbyAndAscending(c)
	if !success {
		return
	}
	limit, offset, success := parseLimitAndOffset(c)
	if !success {
		return
	}
	contacts, err := h.gw.FetchContacts(c.Request.Context(), predicate,
		service.OrderBy(orderby, ascending), service.Page(limit, offset))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// parsePredicate inspects the URL parameters and determines which contacts are searched for.
func parsePredicate(c *gin.Context) (predicate service.Predicate, success bool) {
	search, hasSearch := c.GetQuery("search")
	first := c.Query("firstname")
	last := c.Query("lastname")
	switch {
	case first == "" && last == "" && hasSearch:
		return service.NameContains(search), true
	case first == "" && last == "":
		return service.All(), true
	case first == "" || last == "" || hasSearch:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid name parameters"})
		return nil, false
	default:
		return service.NameEquals(first, last), true
	}
}

// parseOrderbyAndAscending inspects the URL parameters and determines values for the orderby and
// ascending values of the result set.
func parseOrderbyAndAscending(c *gin.Context) (orderby string, ascending bool, success bool) {
	orderby = c.DefaultQuery("orderby", "id")
	if !service.IsOrderable(orderby) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid orderby parameter"})
		return "", false, false
	}
	ascendingAsString := c.DefaultQuery("ascending", "true")
	if !slices.Contains(allowedAscending, ascendingAsString) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid ascending parameter"})
		return orderby, false, false
	}
	return orderby, ascendingAsString == "true", true
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set. Zero means no limit and no offset.
func parseLimitAndOffset(c *gin.Context) (limit int, offset int, success bool) {
	var err error
	if s := c.Query("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return 0, 0, false
		}
	}
	if s := c.Query("offset"); s != "" {
		offset, err = strconv.Atoi(s)
		if err != nil || offset < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid offset parameter"})
			return 0, 0, false
		}
	}
	return limit, offset, true
}

// createContact stores the contact specified in the request's JSON. It responds with the full
// contact data including the newly assigned id. Without a "color" property the contact gets a
// random palette color.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Content-Type: application/json" --data '{"firstname": "Hans", "lastname": "Wurst", "phone": "0815", "birthday": "1969-03-02T00:00:00+00:00"}'
func (h *handler) createContact(c *gin.Context) {
	changes, success := parseBody(c)
	if !success {
		return
	}
	dto := model.NewDTO()
	changes.applyTo(dto)
	contact, err := h.gw.CreateContact(dto).Wait(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, contact)
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56
func (h *handler) findContactByID(c *gin.Context) {
	contact, success := h.lookup(c)
	if !success {
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// updateContactByID updates the contact whose ID value matches the id parameter of the request
// URL, updates the values specified in the JSON (and only those), and finally responds with the
// new version of the contact. A null value removes an optional value.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/contacts/56 --request "PUT" --include --header "Content-Type: application/json" --data '{"phone": "81970"}'
//	> curl http://localhost:8080/contacts/56 --request "PUT" --include --header "Content-Type: application/json" --data '{"birthday": null}'
func (h *handler) updateContactByID(c *gin.Context) {
	existing, success := h.lookup(c)
	if !success {
		return
	}
	changes, success := parseBody(c)
	if !success {
		return
	}

	// It only makes sense to continue if we have at least one value to update.
	if len(changes) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "no values to be updated"})
		return
	}

	future := h.gw.UpdateContact(existing, func(contact *model.Contact) error {
		dto := model.DTOFromContact(*contact)
		changes.applyTo(dto)
		return contact.Configure(dto)
	})
	contact, err := future.Wait(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// deleteContactByID deletes the contact whose ID value matches the id parameter of the request URL
// from the database.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --request "DELETE"
func (h *handler) deleteContactByID(c *gin.Context) {
	contact, success := h.lookup(c)
	if !success {
		return
	}
	if _, err := h.gw.DeleteContacts([]model.Contact{contact}).Wait(c.Request.Context()); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

// deleteContactsByName deletes all contacts with exactly the first name and last name given in
// the URL parameters. Deleting nothing is not an error.
//
// Example REST API call:
//
//	> curl "http://localhost:8080/contacts?firstname=Ada&lastname=Lovelace" --request "DELETE"
func (h *handler) deleteContactsByName(c *gin.Context) {
	first := c.Query("firstname")
	last := c.Query("lastname")
	if first == "" || last == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid name parameters"})
		return
	}
	if _, err := h.gw.DeleteWhere(service.NameEquals(first, last)).Wait(c.Request.Context()); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contacts deleted"})
}

// streamEvents sends the change notifications of the store as server-sent events until the client
// goes away. The first event, "subscribed", confirms the subscription.
//
// Example REST API call:
//
//	> curl --no-buffer http://localhost:8080/events
func (h *handler) streamEvents(c *gin.Context) {
	events, cancel := h.gw.Subscribe()
	defer cancel()
	c.SSEvent("subscribed", gin.H{})
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(e.Kind.String(), e)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// lookup loads the contact named by the id parameter of the request URL. It aborts the request
// if there is no such contact.
func (h *handler) lookup(c *gin.Context) (model.Contact, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid id parameter"})
		return model.Contact{}, false
	}
	contacts, err := h.gw.FetchContacts(c.Request.Context(), service.IDs(id))
	if err != nil {
		h.abortWithError(c, err)
		return model.Contact{}, false
	}
	if len(contacts) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return model.Contact{}, false
	}
	return contacts[0], true
}

// abortWithError translates an error of the gateway into a response.
func (h *handler) abortWithError(c *gin.Context, err error) {
	var missing *model.MissingParametersError
	switch {
	case errors.As(err, &missing):
		labels := make([]string, 0, len(missing.Parameters))
		for _, p := range missing.Parameters {
			labels = append(labels, p.String())
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Missing Required", "parameters": labels})
	case errors.Is(err, service.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	case errors.Is(err, service.ErrUnavailable), errors.Is(err, service.ErrClosed):
		h.logger.Error("contacts store unavailable", "error", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "store unavailable"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.Abort()
	default:
		h.logger.Error("contacts request failed", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

// changes are the edits requested by a JSON body, in a stable order.
type changes []func(dto *model.DTO)

func (cs changes) applyTo(dto *model.DTO) {
	for _, change := range cs {
		change(dto)
	}
}

// parseBody reads the request's JSON object. Properties are the parameter keys plus "color"; a
// null value removes the parameter. The "id" property is ignored. It aborts the request if the
// body is not a JSON object or holds an unknown property or a value of the wrong type.
func parseBody(c *gin.Context) (changes, bool) {
	var body map[string]json.RawMessage
	if err := c.BindJSON(&body); err != nil || body == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return nil, false
	}
	var result changes
	for _, key := range slices.Sorted(maps.Keys(body)) {
		change, err := parseProperty(key, body[key])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return nil, false
		}
		if change != nil {
			result = append(result, change)
		}
	}
	return result, true
}

func parseProperty(key string, raw json.RawMessage) (func(dto *model.DTO), error) {
	isNull := string(raw) == "null"
	if key == "id" {
		return nil, nil
	}
	if key == colorKey {
		if isNull {
			return nil, fmt.Errorf("invalid %s property", key)
		}
		var color model.Color
		if err := json.Unmarshal(raw, &color); err != nil {
			return nil, fmt.Errorf("invalid %s property", key)
		}
		return func(dto *model.DTO) { dto.SetColor(color) }, nil
	}
	p, ok := model.ParseParameter(key)
	if !ok {
		return nil, fmt.Errorf("unknown property %q", key)
	}
	if isNull {
		return func(dto *model.DTO) { dto.Clear(p) }, nil
	}
	if p == model.DateOfBirth {
		var date time.Time
		if err := json.Unmarshal(raw, &date); err != nil {
			return nil, fmt.Errorf("invalid %s property", key)
		}
		return func(dto *model.DTO) { model.SetValue(dto, model.DateOfBirthField, date) }, nil
	}
	field, _ := model.TextField(p)
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, fmt.Errorf("invalid %s property", key)
	}
	return func(dto *model.DTO) { model.SetValue(dto, field, text) }, nil
}
