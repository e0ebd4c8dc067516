package fromrow

import (
	"database/sql"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// Shapes shared by the decode, merge and flatten tests.

type pair struct {
	A int64
	B string
}

type triple struct {
	A int64
	B string
	C bool
}

type withSplit struct {
	_     struct{} `row:"split"`
	Inner pair     `row:"split"`
	C     bool
}

type outer struct {
	_    struct{}  `row:"split"`
	Head withSplit `row:"split"`
	Tail int64
}

type pairs struct {
	_     struct{} `row:"exact"`
	Items []pair   `row:"stride=2"`
}

type series struct {
	_      struct{} `row:"exact"`
	Name   string
	Values []int64 `row:"stride=1"`
}

type tailTags struct {
	_    struct{} `row:"exact"`
	Tags []string `row:"stride=1"`
}

type withTail struct {
	_    struct{} `row:"split"`
	ID   int64
	Rest tailTags `row:"split"`
}

type withOptional struct {
	_     struct{} `row:"split"`
	ID    int64
	Owner *pair `row:"split"`
}

type nullable struct {
	Name  *string
	Note  sql.NullString
	Count *int32
}

type skipped struct {
	A       int64
	Ignored string `row:"-"`
	hidden  string
	B       string
}

type tagged struct {
	_ struct{} `row:"group"`
	K int64    `row:"key"`
	M []string `row:"merge"`
}

type taggedHash struct {
	_ struct{} `row:"hash"`
	K int64    `row:"key"`
	M []string `row:"merge"`
}

type book struct {
	ID    int64
	Title string
}

type author struct {
	_     struct{} `row:"split,group"`
	ID    int64    `row:"key"`
	Name  string
	Books []book `row:"split,merge"`
}

type compositeKey struct {
	_      struct{} `row:"hash"`
	Tenant string   `row:"key"`
	ID     int64    `row:"key"`
	Seen   []int64  `row:"merge"`
}

// Invalid shapes.

type keyInPlain struct {
	K int64 `row:"key"`
}

type strideNotLast struct {
	_     struct{} `row:"exact"`
	Items []int64  `row:"stride=1"`
	Tail  string
}

type strideWidth struct {
	_     struct{} `row:"exact"`
	Items []pair   `row:"stride=3"`
}

type mergeNotSlice struct {
	_   struct{} `row:"group"`
	ID  int64    `row:"key"`
	Tag string   `row:"merge"`
}

type unknownAttr struct {
	A int64 `row:"flatten"`
}

type twoPartitions struct {
	_ struct{} `row:"split,exact"`
	A int64
}

type selfRef struct {
	_    struct{} `row:"split"`
	ID   int64
	Next *selfRef `row:"split"`
}

// allowAll lets cmp look at the blank marker fields.
var allowAll = cmp.Exporter(func(reflect.Type) bool { return true })
