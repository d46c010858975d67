package internaldefs

import (
	sessioncore "github.com/KPpay-project/sessioncore"
)

// CounterDef maps one core counter to its exported name and help text.
type CounterDef struct {
	ID   sessioncore.MetricID
	Name string
	Help string
}

// CounterDefs lists every core counter in export order.
var CounterDefs = []CounterDef{
	{ID: sessioncore.MetricLoginSuccess, Name: "sessioncore_login_success_total", Help: "Sessions started."},
	{ID: sessioncore.MetricLoginFailure, Name: "sessioncore_login_failure_total", Help: "Rejected or failed logins."},
	{ID: sessioncore.MetricLogout, Name: "sessioncore_logout_total", Help: "Explicit logouts in this context."},
	{ID: sessioncore.MetricRefreshSuccess, Name: "sessioncore_refresh_success_total", Help: "Completed refresh exchanges."},
	{ID: sessioncore.MetricRefreshFailure, Name: "sessioncore_refresh_failure_total", Help: "Failed refresh exchanges."},
	{ID: sessioncore.MetricRefreshCoalesced, Name: "sessioncore_refresh_coalesced_total", Help: "Refresh callers coalesced onto an in-flight exchange."},
	{ID: sessioncore.MetricRefreshRetry, Name: "sessioncore_refresh_retry_total", Help: "Scheduler retries after transient refresh failures."},
	{ID: sessioncore.MetricGuardAllow, Name: "sessioncore_guard_allow_total", Help: "Navigations admitted by the route guard."},
	{ID: sessioncore.MetricGuardRedirectLogin, Name: "sessioncore_guard_redirect_login_total", Help: "Navigations redirected to login."},
	{ID: sessioncore.MetricGuardRedirectUnauthorized, Name: "sessioncore_guard_redirect_unauthorized_total", Help: "Navigations denied on role."},
	{ID: sessioncore.MetricCrossContextLogout, Name: "sessioncore_cross_context_logout_total", Help: "Logouts adopted from other contexts."},
	{ID: sessioncore.MetricCrossContextAdopt, Name: "sessioncore_cross_context_adopt_total", Help: "Credentials adopted from other contexts."},
}
