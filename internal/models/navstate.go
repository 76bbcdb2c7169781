package models

// NavState identifies which ERP screen the browser session is currently on.
type NavState string

const (
	NavLoggedOut     NavState = "logged_out"
	NavMainMenu      NavState = "main_menu"
	NavSearchForm    NavState = "search_form"
	NavResultsList   NavState = "results_list"
	NavEntryForm     NavState = "entry_form"
	NavConfirmDialog NavState = "confirm_dialog"
	NavDone          NavState = "done"
	NavError         NavState = "error"
)
