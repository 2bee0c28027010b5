package statsd

/*

Copyright (c) 2017 Andrey Smirnov

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.

*/

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MetricType is DogStatsD metric type code
type MetricType string

// Metric types
const (
	CountType        MetricType = "c"
	GaugeType        MetricType = "g"
	HistogramType    MetricType = "h"
	DistributionType MetricType = "d"
	TimingType       MetricType = "ms"
	SetType          MetricType = "s"
)

type valueKind uint8

const (
	intValue valueKind = iota
	floatValue
	stringValue
)

// metricValue carries one of the supported value kinds without boxing
type metricValue struct {
	kind valueKind
	i    int64
	f    float64
	s    string
}

func (v metricValue) validate(name string) error {
	switch v.kind {
	case floatValue:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return invalidMetric(name, "value is not a finite number")
		}
	case stringValue:
		if v.s == "" || strings.ContainsAny(v.s, "\n|") {
			return invalidMetric(name, "set value is empty or contains reserved characters")
		}
	}

	return nil
}

func (v metricValue) append(buf []byte) []byte {
	switch v.kind {
	case intValue:
		return strconv.AppendInt(buf, v.i, 10)
	case floatValue:
		return strconv.AppendFloat(buf, v.f, 'f', -1, 64)
	default:
		return append(buf, v.s...)
	}
}

func validateName(name string) error {
	if name == "" {
		return invalidMetric(name, "empty name")
	}

	if strings.IndexByte(name, '\n') != -1 {
		return invalidMetric(name, "name contains newline")
	}

	return nil
}

// appendName writes namespace and metric name, characters reserved
// by the protocol are replaced with underscores
func appendName(buf []byte, namespace, name string) []byte {
	buf = append(buf, namespace...)

	for i := 0; i < len(name); i++ {
		switch name[i] {
		case ':', '|', '@':
			buf = append(buf, '_')
		default:
			buf = append(buf, name[i])
		}
	}

	return buf
}

// appendMetric serializes
//
//	<namespace.name>:<value>|<type>[|@<rate>][|#<tags>][|T<timestamp>]
func appendMetric(buf []byte, namespace, name string, typ MetricType, value metricValue, rate float64,
	defaultTags []byte, tags []Tag, timestamp int64) []byte {
	buf = appendName(buf, namespace, name)
	buf = append(buf, ':')
	buf = value.append(buf)
	buf = append(buf, '|')
	buf = append(buf, string(typ)...)

	if rate < 1 {
		buf = append(buf, "|@"...)
		buf = strconv.AppendFloat(buf, rate, 'f', -1, 64)
	}

	buf = appendTags(buf, defaultTags, tags)

	if timestamp > 0 {
		buf = append(buf, "|T"...)
		buf = strconv.AppendInt(buf, timestamp, 10)
	}

	return append(buf, '\n')
}

// EventPriority is priority of the event
type EventPriority string

// Event priorities
const (
	PriorityNormal EventPriority = "normal"
	PriorityLow    EventPriority = "low"
)

// EventAlertType is alert type of the event
type EventAlertType string

// Event alert types
const (
	AlertInfo    EventAlertType = "info"
	AlertError   EventAlertType = "error"
	AlertWarning EventAlertType = "warning"
	AlertSuccess EventAlertType = "success"
)

// Event is a record shown in the event stream
type Event struct {
	Title          string
	Text           string
	Timestamp      time.Time
	Hostname       string
	AggregationKey string
	Priority       EventPriority
	SourceTypeName string
	AlertType      EventAlertType
	Tags           []Tag
}

func (e *Event) validate() error {
	if e.Title == "" {
		return invalidMetric(e.Title, "event title is empty")
	}

	if e.Text == "" {
		return invalidMetric(e.Title, "event text is empty")
	}

	return validateTags(e.Title, e.Tags)
}

// escapedLen is length of s after newlines are escaped
func escapedLen(s string) int {
	return len(s) + strings.Count(s, "\n")
}

func appendEscaped(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			buf = append(buf, '\\', 'n')
			continue
		}
		buf = append(buf, s[i])
	}

	return buf
}

func appendField(buf []byte, prefix, value string) []byte {
	if value == "" {
		return buf
	}

	buf = append(buf, prefix...)

	return append(buf, value...)
}

// appendEvent serializes
//
//	_e{<title-len>,<text-len>}:<title>|<text>[|d:][|h:][|k:][|p:][|s:][|t:][|#<tags>]
func appendEvent(buf []byte, e *Event, defaultTags []byte) []byte {
	buf = append(buf, "_e{"...)
	buf = strconv.AppendInt(buf, int64(escapedLen(e.Title)), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(escapedLen(e.Text)), 10)
	buf = append(buf, "}:"...)
	buf = appendEscaped(buf, e.Title)
	buf = append(buf, '|')
	buf = appendEscaped(buf, e.Text)

	if !e.Timestamp.IsZero() {
		buf = append(buf, "|d:"...)
		buf = strconv.AppendInt(buf, e.Timestamp.Unix(), 10)
	}

	buf = appendField(buf, "|h:", e.Hostname)
	buf = appendField(buf, "|k:", e.AggregationKey)
	buf = appendField(buf, "|p:", string(e.Priority))
	buf = appendField(buf, "|s:", e.SourceTypeName)
	buf = appendField(buf, "|t:", string(e.AlertType))
	buf = appendTags(buf, defaultTags, e.Tags)

	return append(buf, '\n')
}

// ServiceCheckStatus is status of the service check
type ServiceCheckStatus int8

// Service check statuses
const (
	Ok ServiceCheckStatus = iota
	Warn
	Critical
	Unknown
)

// ServiceCheck reports status of some service
type ServiceCheck struct {
	Name      string
	Status    ServiceCheckStatus
	Timestamp time.Time
	Hostname  string
	Message   string
	Tags      []Tag
}

func (sc *ServiceCheck) validate() error {
	if err := validateName(sc.Name); err != nil {
		return err
	}

	if strings.IndexByte(sc.Name, '|') != -1 {
		return invalidMetric(sc.Name, "service check name contains '|'")
	}

	if sc.Status < Ok || sc.Status > Unknown {
		return invalidMetric(sc.Name, "unknown service check status "+strconv.Itoa(int(sc.Status)))
	}

	return validateTags(sc.Name, sc.Tags)
}

// appendMessage escapes newlines and "m:" sequences in service check message
func appendMessage(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\n':
			buf = append(buf, '\\', 'n')
		case s[i] == 'm' && i+1 < len(s) && s[i+1] == ':':
			buf = append(buf, 'm', '\\', ':')
			i++
		default:
			buf = append(buf, s[i])
		}
	}

	return buf
}

// appendServiceCheck serializes
//
//	_sc|<name>|<status>[|d:<timestamp>][|h:<hostname>][|m:<message>][|#<tags>]
//
// Namespace is never applied to service check names.
func appendServiceCheck(buf []byte, sc *ServiceCheck, defaultTags []byte) []byte {
	buf = append(buf, "_sc|"...)
	buf = append(buf, sc.Name...)
	buf = append(buf, '|')
	buf = strconv.AppendInt(buf, int64(sc.Status), 10)

	if !sc.Timestamp.IsZero() {
		buf = append(buf, "|d:"...)
		buf = strconv.AppendInt(buf, sc.Timestamp.Unix(), 10)
	}

	buf = appendField(buf, "|h:", sc.Hostname)

	if sc.Message != "" {
		buf = append(buf, "|m:"...)
		buf = appendMessage(buf, sc.Message)
	}

	buf = appendTags(buf, defaultTags, sc.Tags)

	return append(buf, '\n')
}
