package authapi

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Audit events go to the structured log under "auth.audit".

func (h *Handler) auditLoginFailed(ctx context.Context, userID string, ip net.IP, identifier, reason string) {
	h.audit(ctx, slog.LevelWarn, "auth.login.failed",
		slog.String("user_id", userID),
		slog.String("identifier", identifier),
		slog.String("reason", reason),
		ipAttr(ip),
	)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID string, ip net.IP, rehashed bool) {
	h.audit(ctx, slog.LevelInfo, "auth.login.success",
		slog.String("user_id", userID),
		slog.Bool("rehashed", rehashed),
		ipAttr(ip),
	)
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, identifier string, retryAfter time.Duration) {
	h.audit(ctx, slog.LevelWarn, "auth.login.rate_limited",
		slog.String("identifier", identifier),
		slog.Int64("retry_after_s", int64(retryAfter.Seconds())),
		ipAttr(ip),
	)
}

func (h *Handler) auditRegister(ctx context.Context, userID string, ip net.IP) {
	h.audit(ctx, slog.LevelInfo, "auth.register", slog.String("user_id", userID), ipAttr(ip))
}

func (h *Handler) auditLogout(ctx context.Context, userID string, ip net.IP) {
	h.audit(ctx, slog.LevelInfo, "auth.logout", slog.String("user_id", userID), ipAttr(ip))
}

func (h *Handler) audit(ctx context.Context, level slog.Level, action string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	attrs = append([]slog.Attr{slog.String("action", action)}, attrs...)
	h.log.LogAttrs(ctx, level, "auth.audit", attrs...)
}

func ipAttr(ip net.IP) slog.Attr {
	if ip == nil {
		return slog.String("ip", "")
	}
	return slog.String("ip", ip.String())
}
