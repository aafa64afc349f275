// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3action enumerates the S3 operations the gateway serves.
// https://docs.aws.amazon.com/AmazonS3/latest/API/API_Operations_Amazon_Simple_Storage_Service.html
package s3action

type Action int

const (
	Unknown Action = iota

	// Service
	ListBuckets

	// Bucket
	CreateBucket
	DeleteBucket
	HeadBucket
	GetBucketLocation

	// Object
	ListObjectsV2
	PutObject
	GetObject
	HeadObject
	DeleteObject
	DeleteObjects
	CopyObject
	MoveObjects

	// Multipart
	CreateMultipartUpload
	UploadPart
	CompleteMultipartUpload
	AbortMultipartUpload
	ListParts
)

var names = map[Action]string{
	Unknown:                 "Unknown",
	ListBuckets:             "ListBuckets",
	CreateBucket:            "CreateBucket",
	DeleteBucket:            "DeleteBucket",
	HeadBucket:              "HeadBucket",
	GetBucketLocation:       "GetBucketLocation",
	ListObjectsV2:           "ListObjectsV2",
	PutObject:               "PutObject",
	GetObject:               "GetObject",
	HeadObject:              "HeadObject",
	DeleteObject:            "DeleteObject",
	DeleteObjects:           "DeleteObjects",
	CopyObject:              "CopyObject",
	MoveObjects:             "MoveObjects",
	CreateMultipartUpload:   "CreateMultipartUpload",
	UploadPart:              "UploadPart",
	CompleteMultipartUpload: "CompleteMultipartUpload",
	AbortMultipartUpload:    "AbortMultipartUpload",
	ListParts:               "ListParts",
}

func (a Action) String() string {
	if name, ok := names[a]; ok {
		return name
	}
	return "Unknown"
}

// IsWrite reports whether the action modifies data. Used for
// permission checks and metrics labels.
func (a Action) IsWrite() bool {
	switch a {
	case CreateBucket, DeleteBucket, PutObject, DeleteObject, DeleteObjects,
		CopyObject, MoveObjects, CreateMultipartUpload, UploadPart,
		CompleteMultipartUpload, AbortMultipartUpload:
		return true
	}
	return false
}
