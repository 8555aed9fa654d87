package route

// builtinRoutes lists the store views in registration order. Each family's
// create and edit forms share one template and controller.
var builtinRoutes = []Definition{
	{Path: "/remote", TemplateRef: "partials/remote-list.html", ControllerRef: "RemoteListCtl"},
	{Path: "/remote/view/:name", TemplateRef: "partials/remote-detail.html", ControllerRef: "RemoteDetailCtl"},
	{Path: "/remote/new", TemplateRef: "partials/remote-edit.html", ControllerRef: "RemoteEditCtl"},
	{Path: "/remote/edit/:name", TemplateRef: "partials/remote-edit.html", ControllerRef: "RemoteEditCtl"},

	{Path: "/hosted", TemplateRef: "partials/hosted-list.html", ControllerRef: "HostedListCtl"},
	{Path: "/hosted/view/:name", TemplateRef: "partials/hosted-detail.html", ControllerRef: "HostedDetailCtl"},
	{Path: "/hosted/new", TemplateRef: "partials/hosted-edit.html", ControllerRef: "HostedEditCtl"},
	{Path: "/hosted/edit/:name", TemplateRef: "partials/hosted-edit.html", ControllerRef: "HostedEditCtl"},

	{Path: "/group", TemplateRef: "partials/group-list.html", ControllerRef: "GroupListCtl"},
	{Path: "/group/view/:name", TemplateRef: "partials/group-detail.html", ControllerRef: "GroupDetailCtl"},
	{Path: "/group/new", TemplateRef: "partials/group-edit.html", ControllerRef: "GroupEditCtl"},
	{Path: "/group/edit/:name", TemplateRef: "partials/group-edit.html", ControllerRef: "GroupEditCtl"},
}

// Builtin returns a copy of the built-in store view definitions.
func Builtin() []Definition {
	out := make([]Definition, len(builtinRoutes))
	copy(out, builtinRoutes)
	return out
}

// RegisterStatic registers the built-in store views.
func RegisterStatic(r Registrar) {
	for _, d := range builtinRoutes {
		r.When(d.Path, Options{
			TemplateURL: d.TemplateRef,
			Controller:  d.ControllerRef,
			Source:      SourceBuiltin,
		})
	}
}
