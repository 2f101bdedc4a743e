// Package logx is a thin structured-logging facade over zerolog.
//
// It exists so components depend on a small, stable Logger value instead of
// zerolog directly, and so sinks and levels can be swapped at runtime
// (config hot-reload) without re-plumbing loggers through the app.
package logx
