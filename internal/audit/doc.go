// Package audit records who did what to which correspondence.
package audit
