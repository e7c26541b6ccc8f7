package blocker

import (
	"encoding/json"
	"fmt"
)

// HideStyleID is the id of the style element shared by css-display-none rules
const HideStyleID = "content-blocker-css-display-none-style"

// HideScript returns a script hiding every element matching selector. It
// runs immediately and again on DOMContentLoaded.
func HideScript(selector string) string {
	sel := jsString(selector)
	rule := jsString(selector + " { display: none !important; }")
	styleID := jsString(HideStyleID)

	return fmt.Sprintf(`(function(d) {
  var selector = %s;
  var rule = %s;
  function hide() {
    if (d.head != null || d.body != null) {
      var style = d.getElementById(%s);
      if (style == null) {
        style = d.createElement('style');
        style.id = %s;
        (d.head || d.body).appendChild(style);
      }
      if (style.textContent.indexOf(rule) === -1) {
        style.textContent += rule + '\n';
      }
    }
    d.querySelectorAll(selector).forEach(function(item) {
      item.setAttribute('style', 'display: none !important;');
    });
  }
  hide();
  d.addEventListener('DOMContentLoaded', function() { hide(); });
})(document);`, sel, rule, styleID, styleID)
}

// jsString quotes s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
