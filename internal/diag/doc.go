// Package diag turns raw toolchain output into structured, user-presentable
// diagnostics. It never fails: input that matches no known error shape is
// passed through unrecognized instead of being dropped.
package diag
