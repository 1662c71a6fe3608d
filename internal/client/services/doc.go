// Package services contains application services for the cofind client that
// sit next to the session coordinator: moving guest place lists into the
// signed-in account, toggling saved places, editing the profile and
// uploading avatars to object storage.
package services
