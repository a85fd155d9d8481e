package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"orthrus/core"
)

// SchemaNamespace is the XML namespace of server configuration documents.
// The reader resolves it to the canonical "config" prefix regardless of the
// prefix a document binds, so dispatch never depends on document prefixes.
const SchemaNamespace = "https://orthrus.dev/xsd/orthrus_server_config_2.0.xsd"

// configPrefix is the canonical prefix assigned to SchemaNamespace.
const configPrefix = "config"

// Default document and schema locations, resolved against the configured
// directory when a deployment does not name an explicit pair.
const (
	DefaultConfigFile = "orthrus-server-config.xml"
	DefaultSchemaFile = "orthrus_server_config_2.0.xsd"
)

// Qualified element names the reader dispatches on. Anything else inside the
// document is skipped silently: unknown elements from newer schema versions
// must not abort the parse.
const (
	elemRoot                = "config:orthrus-server-config"
	elemHeaderName          = "config:client-application-identification-header-name"
	elemCorrelationConfig   = "config:correlation-config"
	elemCorrelatedClientSet = "config:correlated-client-set"
	elemClientAppName       = "config:client-application-name"
	elemEventAnalyzer       = "config:event-analyzer"
	elemAttackAnalyzer      = "config:attack-analyzer"
	elemResponseAnalyzer    = "config:response-analyzer"
	elemEventStore          = "config:event-store"
	elemAttackStore         = "config:attack-store"
	elemResponseStore       = "config:response-store"
	elemLogger              = "config:logger"
	elemResponseHandler     = "config:response-handler"
	elemEventStoreObs       = "config:event-store-observers"
	elemAttackStoreObs      = "config:attack-store-observers"
	elemResponseStoreObs    = "config:response-store-observers"
	elemObserver            = "config:observer"
	elemDetectionPoint      = "config:detection-point"
	elemID                  = "config:id"
	elemThreshold           = "config:threshold"
	elemCount               = "config:count"
	elemInterval            = "config:interval"
	elemResponse            = "config:response"
	elemAction              = "config:action"
)

// Attribute names read from start elements.
const (
	attrClass = "class"
	attrUnit  = "unit"
)

// DocumentValidator checks a document against its schema before parsing.
// Validation is a collaborator's job: the reader itself never validates
// structure, and deployments that skip validation simply leave this unset.
type DocumentValidator interface {
	Validate(documentPath, schemaPath string) error
}

// Reader converts server configuration XML documents into ServerConfig
// values. A Reader is immutable after construction apart from its optional
// collaborator fields and may be reused across documents, but each parse
// needs its own token stream.
type Reader struct {
	// namespaces maps namespace URIs to the canonical prefixes used as
	// dispatch keys; built once per Reader
	namespaces map[string]string

	// Validator, when set, is consulted by ReadFile before parsing
	Validator DocumentValidator
	// SchemaPath is the schema location handed to the Validator
	SchemaPath string
}

// NewReader creates a Reader with the fixed namespace table.
func NewReader() *Reader {
	return &Reader{
		namespaces: map[string]string{SchemaNamespace: configPrefix},
		SchemaPath: DefaultSchemaFile,
	}
}

// ReadDefaults reads the default configuration document from dir, pairing it
// with the default schema location when none was set explicitly.
func (r *Reader) ReadDefaults(dir string) (*ServerConfig, error) {
	if r.SchemaPath == "" || r.SchemaPath == DefaultSchemaFile {
		r.SchemaPath = filepath.Join(dir, DefaultSchemaFile)
	}
	return r.ReadFile(filepath.Join(dir, DefaultConfigFile))
}

// ReadFile opens, parses, and closes the named configuration document. The
// stream is released on every exit path. When a Validator is configured it
// runs before the parse and its failure aborts the read.
func (r *Reader) ReadFile(path string) (*ServerConfig, error) {
	if r.Validator != nil {
		if err := r.Validator.Validate(path, r.SchemaPath); err != nil {
			return nil, fmt.Errorf("validate configuration document %s: %w", path, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open configuration document: %w", err)
	}
	defer f.Close()

	cfg, err := r.Read(f)
	if err != nil {
		return nil, fmt.Errorf("parse configuration document %s: %w", path, err)
	}
	return cfg, nil
}

// Read parses a configuration document from an open stream. The caller owns
// the stream. The returned ServerConfig is complete once the root element's
// closing tag was observed; if the stream is exhausted first, the partially
// built configuration is returned without error. That leniency is the point:
// strictness belongs to ServerConfig.Validate.
func (r *Reader) Read(src io.Reader) (*ServerConfig, error) {
	// The stdlib decoder never resolves external entities, and its default
	// strict mode rejects unknown internal entities outright.
	c := &cursor{
		dec:        xml.NewDecoder(src),
		namespaces: r.namespaces,
	}
	return c.readServerConfig()
}

// cursor is the shared token cursor all sub-parsers pull from: a
// forward-only iterator over decoder events carrying the immutable namespace
// table. Not safe for concurrent use; one cursor per parse.
type cursor struct {
	dec        *xml.Decoder
	namespaces map[string]string
	exhausted  bool
}

// next pulls the next token. Stream exhaustion, whether a clean EOF or input
// that ends with elements still open, yields (nil, nil) and latches the cursor;
// every other decoder failure is a StreamError.
func (c *cursor) next() (xml.Token, error) {
	if c.exhausted {
		return nil, nil
	}
	tok, err := c.dec.Token()
	if err != nil {
		if isExhaustion(err) {
			c.exhausted = true
			return nil, nil
		}
		return nil, &StreamError{Offset: c.dec.InputOffset(), Err: err}
	}
	return tok, nil
}

// isExhaustion reports whether a decoder error means the input ran out
// rather than being structurally broken mid-stream.
func isExhaustion(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var syn *xml.SyntaxError
	return errors.As(err, &syn) && strings.HasPrefix(syn.Msg, "unexpected EOF")
}

// qualifiedName maps a decoder name to the dispatch key: the canonical
// prefix for a mapped namespace, the namespace verbatim otherwise, the bare
// local name when no namespace applies. Pure; unrecognized names simply fail
// to match any dispatch case.
func (c *cursor) qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	if prefix, ok := c.namespaces[name.Space]; ok {
		return prefix + ":" + name.Local
	}
	return name.Space + ":" + name.Local
}

// attrValue looks up an attribute of a start element by local name.
func attrValue(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// implementationAttr reads an implementation identifier from a class
// attribute. An absent attribute leaves the field unset; a present value is
// trimmed, so a whitespace-only value is unset too.
func implementationAttr(el xml.StartElement) string {
	v, ok := attrValue(el, attrClass)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// elementText consumes tokens up to the current element's closing tag and
// returns the trimmed character data. Valid only immediately after a start
// element; a child element inside the text is a cursor contract violation.
func (c *cursor) elementText() (string, error) {
	var b strings.Builder
	for {
		tok, err := c.next()
		if err != nil {
			return "", err
		}
		if tok == nil {
			return strings.TrimSpace(b.String()), nil
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			return strings.TrimSpace(b.String()), nil
		case xml.StartElement:
			return "", &StreamError{
				Offset: c.dec.InputOffset(),
				Err:    fmt.Errorf("unexpected element %s inside text content", c.qualifiedName(t.Name)),
			}
		}
	}
}

// intText reads element text and parses it as an integer. Non-numeric text
// is a CoercionError naming the scope and field; sign and range follow
// strconv.Atoi, with positivity enforced by validation rather than here.
func (c *cursor) intText(scope, field string) (int, error) {
	text, err := c.elementText()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &CoercionError{Scope: scope, Field: field, Value: text, Err: err}
	}
	return n, nil
}

// readServerConfig is the root sub-parser. It owns the cursor for the whole
// parse: recognized children are dispatched to leaf reads or nested
// sub-parsers, unknown elements and non-element events are skipped, and the
// root closing tag terminates the loop.
func (c *cursor) readServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	for {
		tok, err := c.next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return cfg, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch c.qualifiedName(t.Name) {
			case elemRoot:
				// entry marker
			case elemHeaderName:
				text, err := c.elementText()
				if err != nil {
					return nil, err
				}
				cfg.ClientApplicationIdentificationHeaderName = text
			case elemCorrelationConfig:
				sets, err := c.readCorrelationSets()
				if err != nil {
					return nil, err
				}
				cfg.CorrelationSets = sets
			case elemEventAnalyzer:
				cfg.EventAnalyzer = implementationAttr(t)
			case elemAttackAnalyzer:
				cfg.AttackAnalyzer = implementationAttr(t)
			case elemResponseAnalyzer:
				cfg.ResponseAnalyzer = implementationAttr(t)
			case elemEventStore:
				cfg.EventStore = implementationAttr(t)
			case elemAttackStore:
				cfg.AttackStore = implementationAttr(t)
			case elemResponseStore:
				cfg.ResponseStore = implementationAttr(t)
			case elemLogger:
				cfg.Logger = implementationAttr(t)
			case elemResponseHandler:
				cfg.ResponseHandler = implementationAttr(t)
			case elemEventStoreObs:
				obs, err := c.readObservers(elemEventStoreObs)
				if err != nil {
					return nil, err
				}
				cfg.EventStoreObservers = obs
			case elemAttackStoreObs:
				obs, err := c.readObservers(elemAttackStoreObs)
				if err != nil {
					return nil, err
				}
				cfg.AttackStoreObservers = obs
			case elemResponseStoreObs:
				obs, err := c.readObservers(elemResponseStoreObs)
				if err != nil {
					return nil, err
				}
				cfg.ResponseStoreObservers = obs
			case elemDetectionPoint:
				dp, err := c.readDetectionPoint()
				if err != nil {
					return nil, err
				}
				cfg.DetectionPoints = append(cfg.DetectionPoints, dp)
			}
		case xml.EndElement:
			if c.qualifiedName(t.Name) == elemRoot {
				return cfg, nil
			}
		}
	}
}

// readCorrelationSets parses a correlation-config scope: each
// correlated-client-set becomes one CorrelationSet, in document order, with
// its client-application-name texts appended in order.
func (c *cursor) readCorrelationSets() ([]core.CorrelationSet, error) {
	var sets []core.CorrelationSet
	var current *core.CorrelationSet
	for {
		tok, err := c.next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return sets, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch c.qualifiedName(t.Name) {
			case elemCorrelatedClientSet:
				current = &core.CorrelationSet{}
			case elemClientAppName:
				text, err := c.elementText()
				if err != nil {
					return nil, err
				}
				// a name outside an open correlated-client-set violates the
				// input contract; not defended
				current.ClientApplications = append(current.ClientApplications, text)
			}
		case xml.EndElement:
			switch c.qualifiedName(t.Name) {
			case elemCorrelatedClientSet:
				sets = append(sets, *current)
				current = nil
			case elemCorrelationConfig:
				return sets, nil
			}
		}
	}
}

// readObservers parses one observer list. The three lists share shape, so
// the sub-parser is parametrized by the list's own closing tag. A missing
// class attribute is a CoercionError, never an empty entry.
func (c *cursor) readObservers(endTag string) ([]string, error) {
	var observers []string
	for {
		tok, err := c.next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return observers, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if c.qualifiedName(t.Name) == elemObserver {
				v, ok := attrValue(t, attrClass)
				if !ok {
					return nil, &CoercionError{Scope: endTag, Field: attrClass}
				}
				observers = append(observers, strings.TrimSpace(v))
			}
		case xml.EndElement:
			if c.qualifiedName(t.Name) == endTag {
				return observers, nil
			}
		}
	}
}

// readDetectionPoint parses one detection-point scope. A repeated threshold
// overwrites the previous one: multiplicity is not enforced, last wins.
func (c *cursor) readDetectionPoint() (core.DetectionPoint, error) {
	var dp core.DetectionPoint
	for {
		tok, err := c.next()
		if err != nil {
			return core.DetectionPoint{}, err
		}
		if tok == nil {
			return dp, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch c.qualifiedName(t.Name) {
			case elemID:
				text, err := c.elementText()
				if err != nil {
					return core.DetectionPoint{}, err
				}
				dp.ID = text
			case elemThreshold:
				th, err := c.readThreshold()
				if err != nil {
					return core.DetectionPoint{}, err
				}
				dp.Threshold = th
			case elemResponse:
				resp, err := c.readResponse()
				if err != nil {
					return core.DetectionPoint{}, err
				}
				dp.Responses = append(dp.Responses, resp)
			}
		case xml.EndElement:
			if c.qualifiedName(t.Name) == elemDetectionPoint {
				return dp, nil
			}
		}
	}
}

// readThreshold parses one threshold scope: an integer count plus an
// interval.
func (c *cursor) readThreshold() (core.Threshold, error) {
	var th core.Threshold
	for {
		tok, err := c.next()
		if err != nil {
			return core.Threshold{}, err
		}
		if tok == nil {
			return th, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch c.qualifiedName(t.Name) {
			case elemCount:
				n, err := c.intText(elemThreshold, "count")
				if err != nil {
					return core.Threshold{}, err
				}
				th.Count = n
			case elemInterval:
				iv, err := c.readInterval(t)
				if err != nil {
					return core.Threshold{}, err
				}
				th.Interval = iv
			}
		case xml.EndElement:
			if c.qualifiedName(t.Name) == elemThreshold {
				return th, nil
			}
		}
	}
}

// readResponse parses one response scope: an action name plus an interval.
func (c *cursor) readResponse() (core.Response, error) {
	var resp core.Response
	for {
		tok, err := c.next()
		if err != nil {
			return core.Response{}, err
		}
		if tok == nil {
			return resp, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch c.qualifiedName(t.Name) {
			case elemAction:
				text, err := c.elementText()
				if err != nil {
					return core.Response{}, err
				}
				resp.Action = text
			case elemInterval:
				iv, err := c.readInterval(t)
				if err != nil {
					return core.Response{}, err
				}
				resp.Interval = iv
			}
		case xml.EndElement:
			if c.qualifiedName(t.Name) == elemResponse {
				return resp, nil
			}
		}
	}
}

// readInterval builds an Interval from an interval start element: the
// required unit attribute (trimmed, accepted verbatim) plus the integer
// body. A missing unit is a CoercionError.
func (c *cursor) readInterval(el xml.StartElement) (core.Interval, error) {
	unit, ok := attrValue(el, attrUnit)
	if !ok {
		return core.Interval{}, &CoercionError{Scope: elemInterval, Field: attrUnit}
	}
	duration, err := c.intText(elemInterval, "duration")
	if err != nil {
		return core.Interval{}, err
	}
	return core.Interval{Duration: duration, Unit: strings.TrimSpace(unit)}, nil
}
