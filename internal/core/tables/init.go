// Package tables holds the entity specific default rules. Each file
// registers its providers from init, so a blank import of this package
// is enough to enable all of them:
//
//	import _ "github.com/JonMunkholm/clodoo/internal/core/tables"
package tables
