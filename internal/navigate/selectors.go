package navigate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/erptools/nsauto/internal/browser"
)

// Selectors is the full table of UI elements the flows touch. NetSuite
// element IDs drift between releases, so everything here can be overridden
// from a YAML file without rebuilding.
type Selectors struct {
	Login browser.LoginSelectors `yaml:"login"`

	// ErrorBanner is the ERP's explicit error surface; its text is recorded
	// verbatim as the failure reason.
	ErrorBanner string `yaml:"error_banner"`

	// SavedMessage confirms a committed form submission.
	SavedMessage string `yaml:"saved_message"`
	SavedText    string `yaml:"saved_text"`

	Return struct {
		MainForm       string `yaml:"main_form"`
		RefundButton   string `yaml:"refund_button"`
		CreditMemoLink string `yaml:"credit_memo_link"` // related-records link proving a memo already exists
	} `yaml:"return"`

	Entry struct {
		Date       string `yaml:"date"`
		ApplyTab   string `yaml:"apply_tab"`
		ItemSelect string `yaml:"item_select"`
		Save       string `yaml:"save"`
		Edit       string `yaml:"edit"`
		Memo       string `yaml:"memo"`
		Location   string `yaml:"location"`
	} `yaml:"entry"`

	Inventory struct {
		RowFormat  string `yaml:"row_format"` // expects one %d for the row number
		DetailIcon string `yaml:"detail_icon"`
		DetailLink string `yaml:"detail_link"`
		Bin        string `yaml:"bin"`
		Status     string `yaml:"status"`
		RowOK      string `yaml:"row_ok"`
		PopupOK    string `yaml:"popup_ok"`
	} `yaml:"inventory"`

	Apply struct {
		PaymentField string `yaml:"payment_field"` // running payment total on the customer payment form
	} `yaml:"apply"`

	Purge struct {
		ActionMenu  string `yaml:"action_menu"`
		DeleteItem  string `yaml:"delete_item"`
		ConfirmOK   string `yaml:"confirm_ok"`
		ListTitle   string `yaml:"list_title"` // page-title fragment of the list screen
		SearchBox   string `yaml:"search_box"`
		RowFormat   string `yaml:"row_format"` // expects one %s for the record id
		MarkAll     string `yaml:"mark_all"`
		DeleteAll   string `yaml:"delete_all"`
		NextPage    string `yaml:"next_page"`
		EmptyList   string `yaml:"empty_list"`
	} `yaml:"purge"`

	Bill struct {
		BillButton string `yaml:"bill_button"`
		Department string `yaml:"department"`
		Status     string `yaml:"status"` // record status field on the order view
	} `yaml:"bill"`
}

// DefaultSelectors returns the stock NetSuite selector table.
func DefaultSelectors() Selectors {
	var s Selectors
	s.Login = browser.DefaultLoginSelectors()
	s.ErrorBanner = "div.uir-alert-box.error, div.errortext"
	s.SavedMessage = "div.content div.descr"
	s.SavedText = "保存されました"

	s.Return.MainForm = "#main_form"
	s.Return.RefundButton = "#refund"
	s.Return.CreditMemoLink = "a[href*='custcred.nl']"

	s.Entry.Date = "#trandate"
	s.Entry.ApplyTab = "#applytxt"
	s.Entry.ItemSelect = "#autoenter"
	s.Entry.Save = "#btn_secondarymultibutton_submitter"
	s.Entry.Edit = "#edit"
	s.Entry.Memo = "#memo"
	s.Entry.Location = "#location_display"

	s.Inventory.RowFormat = "#item_row_%d"
	s.Inventory.DetailIcon = "#item_row_%d span.i_inventorydetailneeded"
	s.Inventory.DetailLink = "#inventorydetail_helper_popup"
	s.Inventory.Bin = "#inventoryassignment_binnumber_display"
	s.Inventory.Status = "input[id^='inpt_inventorystatus']"
	s.Inventory.RowOK = "#inventoryassignment_addedit"
	s.Inventory.PopupOK = "#secondaryok"

	s.Purge.ActionMenu = "#spn_ACTIONMENU_d, button[data-action-menu]"
	s.Purge.DeleteItem = "a[id^='delete'], #actionmenu a.delete"
	s.Purge.ConfirmOK = "button.confirm-ok, #ok"
	s.Purge.ListTitle = "リスト"
	s.Purge.SearchBox = "input[id^='Router_FIELD']"
	s.Purge.RowFormat = "input[type='checkbox'][value='%s']"
	s.Purge.MarkAll = "#uir_mark_all"
	s.Purge.DeleteAll = "#delete"
	s.Purge.NextPage = "a[data-nav='next'], #uir_next"
	s.Purge.EmptyList = "div.uir-list-empty"

	s.Apply.PaymentField = "#payment_formattedValue"

	s.Bill.BillButton = "#billremaining"
	s.Bill.Department = "#inpt_department_display, #department_display"
	s.Bill.Status = "div.uir-record-status"

	return s
}

// LoadSelectors reads a YAML override file on top of the defaults. An empty
// path returns the defaults unchanged.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selector overrides: %w", err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, fmt.Errorf("parse selector overrides %s: %w", path, err)
	}
	return sel, nil
}
