/*
Package template expands annotated C sources into complete HPy extension
modules.

A template is ordinary C code with directive lines:

	@EXPORT(f)
	@EXPORT_TYPE("Point", Point_spec)
	@EXTRA_INIT_FUNC(setup_constants)
	@EXPORT_LEGACY(legacy_methods)
	@INIT

Directives accumulate entries in a Builder. The terminal @INIT directive
renders the module definition and init function from those entries and
locks the Builder; any later directive that touches it is an authoring
error.

Arguments are split on commas and trimmed. Commas or parentheses inside an
argument are not supported.
*/
package template
