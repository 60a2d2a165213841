package analysis

import (
	"fmt"

	"github.com/joseph-ayodele/inspection-verifier/constants"
)

// Summary renders the one-line verdict shown to users.
func Summary(status constants.VerificationStatus, confidence int, issues []string) string {
	switch status {
	case constants.StatusValid:
		return fmt.Sprintf("Documento válido (confianza %d%%).", confidence)
	case constants.StatusProbablyValid:
		return fmt.Sprintf("Documento probablemente válido (confianza %d%%).", confidence)
	case constants.StatusSuspicious:
		return fmt.Sprintf("Documento sospechoso (confianza %d%%): %d problema(s) detectado(s).", confidence, len(issues))
	default:
		return fmt.Sprintf("Documento inválido (confianza %d%%): %d problema(s) detectado(s).", confidence, len(issues))
	}
}
