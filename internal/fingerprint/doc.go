// Package fingerprint turns images into face feature prints. Face detection
// and embedding run on an external embedding server; this package prepares
// the image, calls the server and normalizes the detected face regions.
package fingerprint
