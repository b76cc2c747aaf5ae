package moments

// Prompt is the instruction sent alongside the video.
const Prompt = `Analyse cette vidéo et identifie les 3-5 moments les plus viraux (30-60 secondes chacun).
Pour chaque moment, fournis:

1. Timestamp de début (en secondes)
2. Timestamp de fin (en secondes)
3. Titre accrocheur (max 100 caractères)
4. Description virale (max 200 caractères)
5. 10-15 hashtags pertinents
6. Raison pour laquelle ce moment est viral
7. Hook (première phrase pour capter l'attention)

Réponds UNIQUEMENT en format JSON:
{
    "clips": [
        {
            "start": 10.5,
            "end": 45.2,
            "title": "Titre accrocheur",
            "description": "Description virale",
            "tags": ["#viral", "#shorts", "#tendance"],
            "hook": "Phrase d'accroche",
            "viral_reason": "Pourquoi c'est viral"
        }
    ]
}

Concentre-toi sur:
- Moments émotionnels forts
- Révélations surprenantes
- Conseils pratiques rapides
- Moments drôles/choquants
- Transformations visuelles`
