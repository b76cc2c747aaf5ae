package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/forPelevin/shortsbot/internal/usecase"
)

const startText = `🎬 *Bot Générateur de Shorts Viraux* 🚀

Je transforme vos vidéos longues en clips courts VIRAUX !

📱 *Fonctionnalités:*
✅ Analyse IA des meilleurs moments
✅ Format vertical 9:16 parfait
✅ Sous-titres automatiques
✅ Titres + descriptions + hashtags optimisés
✅ Clips de 30-60 secondes

📤 *Comment utiliser:*
1. Envoyez-moi une vidéo (fichier ou lien YouTube)
2. Je vais l'analyser avec Gemini AI
3. Vous recevrez 3-5 shorts prêts à publier !

🎯 *Commandes:*
/start - Voir ce message
/help - Aide détaillée

*Envoyez votre première vidéo maintenant ! 🎥*`

const helpText = `📚 *Guide d'utilisation*

*Formats acceptés:*
• Vidéo directe (fichier MP4, MOV, AVI)
• Lien YouTube
• Liens vidéo directs

*Processus:*
1️⃣ Envoi de votre vidéo
2️⃣ Analyse IA (~1-2 min)
3️⃣ Génération des shorts (~2-5 min)
4️⃣ Réception des clips + métadonnées

*Caractéristiques des shorts:*
📏 Durée: 30-60 secondes
📱 Format: 9:16 (vertical)
📝 Sous-titres: en bas de l'écran, accroche en haut
🎯 Optimisé: TikTok, YouTube Shorts, Reels

*Astuce:* Les vidéos de 5-30 minutes donnent les meilleurs résultats !`

const (
	msgUploadReceived = "🎬 Vidéo reçue ! Traitement en cours...\n⏳ Cela peut prendre 5-10 minutes."
	msgAnalyzing      = "🤖 Analyse IA en cours avec Gemini..."
	msgTranscribing   = "🎤 Transcription audio pour sous-titres..."
	msgNoCaptions     = "⚠️ Transcription indisponible, shorts sans sous-titres."
	msgDone           = "✅ Tous les shorts sont prêts !\n🚀 Publiez-les sur TikTok, YouTube Shorts, Instagram Reels !"

	msgLinkFailed     = "❌ Erreur téléchargement. Vérifiez le lien."
	msgUploadFailed   = "❌ Erreur lors de la récupération de la vidéo. Telegram limite les fichiers reçus par les bots à 20 Mo, envoyez plutôt un lien."
	msgAnalysisFailed = "❌ Erreur lors de l'analyse. Réessayez avec une autre vidéo."
	msgTimeout        = "⌛ Délai de traitement dépassé. Réessayez avec une vidéo plus courte."
	msgFailed         = "❌ Erreur lors du traitement. Réessayez plus tard."
)

type sourceKind int

const (
	sourceUpload sourceKind = iota
	sourceLink
)

// progressText maps a pipeline event to the chat message announcing it.
// Clip delivery is handled separately; ok is false for events with no text.
func progressText(ev usecase.Event, src sourceKind, url string) (string, bool) {
	switch ev.Kind {
	case usecase.KindMomentsFound:
		return fmt.Sprintf("✅ %d moments viraux détectés !\n🎬 Génération des shorts...", ev.Total), true
	case usecase.KindCaptionsUnavailable:
		return msgNoCaptions, true
	case usecase.KindClipFailed:
		return fmt.Sprintf("❌ Erreur création short %d", ev.Index), true
	case usecase.KindState:
	default:
		return "", false
	}

	switch ev.State {
	case usecase.StateReceived:
		if src == sourceLink {
			return "📥 Téléchargement de la vidéo...\n🔗 " + url, true
		}
		return msgUploadReceived, true
	case usecase.StateAnalyzing:
		return msgAnalyzing, true
	case usecase.StateTranscribing:
		return msgTranscribing, true
	case usecase.StateRendering:
		return fmt.Sprintf("⚙️ Création du short %d/%d...", ev.Index, ev.Total), true
	case usecase.StateDone:
		return msgDone, true
	case usecase.StateFailed:
		return failureText(ev.Err, src), true
	default:
		return "", false
	}
}

func failureText(err error, src sourceKind) string {
	var (
		derr *usecase.DownloadError
		aerr *usecase.AnalysisError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.As(err, &derr):
		if src == sourceLink {
			return msgLinkFailed
		}
		return msgUploadFailed
	case errors.As(err, &aerr):
		return msgAnalysisFailed
	default:
		return msgFailed
	}
}
