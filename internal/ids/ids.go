// Package ids generates prefixed, sortable identifiers for the entity tables.
package ids

import "github.com/segmentio/ksuid"

func NewAccount() string { return "user_" + ksuid.New().String() }

func NewLicense() string { return "lic_" + ksuid.New().String() }

func NewRecord() string { return "rec_" + ksuid.New().String() }
