// Package contentstore fetches packaged object archives from the remote
// content store and classifies the reply as ready, preparing, or failed.
package contentstore
