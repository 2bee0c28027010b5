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
	"strconv"
	"strings"
)

type tagType uint8

const (
	typeString tagType = iota
	typeInt64
	typeBare
)

// Tag is metric-specific tag
//
// Tags are rendered in Datadog format: "name:value" or just "value"
// for bare tags.
type Tag struct {
	name     string
	value    string
	intValue int64
	typ      tagType
}

// StringTag creates Tag with string value
func StringTag(name, value string) Tag {
	return Tag{name: name, value: value, typ: typeString}
}

// IntTag creates Tag with integer value
func IntTag(name string, value int) Tag {
	return Tag{name: name, intValue: int64(value), typ: typeInt64}
}

// Int64Tag creates Tag with integer value
func Int64Tag(name string, value int64) Tag {
	return Tag{name: name, intValue: value, typ: typeInt64}
}

// BareTag creates Tag without name, e.g. "production"
func BareTag(value string) Tag {
	return Tag{value: value, typ: typeBare}
}

// ParseTag converts "name:value" string into Tag, strings without
// colon become bare tags
func ParseTag(s string) Tag {
	if i := strings.IndexByte(s, ':'); i > 0 {
		return StringTag(s[:i], s[i+1:])
	}

	return BareTag(s)
}

// Append formats tag and appends it to the buffer
//
// Characters '|' and ',' are reserved by the protocol and are stripped.
func (tag Tag) Append(buf []byte) []byte {
	if tag.typ != typeBare {
		buf = appendTagString(buf, tag.name)
		buf = append(buf, ':')
	}

	if tag.typ == typeInt64 {
		return strconv.AppendInt(buf, tag.intValue, 10)
	}

	return appendTagString(buf, tag.value)
}

func (tag Tag) valid() bool {
	return strings.IndexByte(tag.name, '\n') == -1 && strings.IndexByte(tag.value, '\n') == -1
}

func appendTagString(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == '|' || s[i] == ',' {
			continue
		}
		buf = append(buf, s[i])
	}

	return buf
}

// renderTags pre-formats default tags, they are copied into every line as is
func renderTags(tags []Tag) []byte {
	var buf []byte

	for i, tag := range tags {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = tag.Append(buf)
	}

	return buf
}

// appendTags merges pre-rendered default tags with call tags
//
// Call tags follow default tags, no deduplication is performed.
func appendTags(buf []byte, defaultTags []byte, tags []Tag) []byte {
	if len(defaultTags) == 0 && len(tags) == 0 {
		return buf
	}

	buf = append(buf, "|#"...)
	buf = append(buf, defaultTags...)

	for i, tag := range tags {
		if i > 0 || len(defaultTags) > 0 {
			buf = append(buf, ',')
		}
		buf = tag.Append(buf)
	}

	return buf
}

func validateTags(name string, tags []Tag) error {
	for _, tag := range tags {
		if !tag.valid() {
			return invalidMetric(name, "tag contains newline")
		}
	}

	return nil
}
